// Package backup defines the value types shared by the catalog: the
// structured backup path codec, artifact kinds, date ranges, and the
// manifest naming convention.
package backup

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
)

// ErrMalformedKey indicates a remote key that does not parse under the
// backup path grammar. Callers listing a bucket skip such keys; they are
// never fatal to discovery.
var ErrMalformedKey = errors.New("malformed backup key")

// Kind identifies the type of a backup artifact.
type Kind string

const (
	// KindManifest is the v2 manifest (meta) file describing one backup.
	KindManifest Kind = "META_V2"
	// KindSnapshot is snapshot payload data.
	KindSnapshot Kind = "SST_V2"
	// KindCommitLog is an archived commit log segment.
	KindCommitLog Kind = "CL"
	// KindOther covers local-only artifacts that never appear in remote keys.
	KindOther Kind = "OTHER"
)

// ParseKind converts a remote key tag into a Kind.
func ParseKind(tag string) (Kind, error) {
	switch Kind(tag) {
	case KindManifest, KindSnapshot, KindCommitLog:
		return Kind(tag), nil
	}
	return "", fmt.Errorf("%w: unknown kind tag %q", ErrMalformedKey, tag)
}

// timeLayout is the timestamp segment encoding, minute resolution, UTC.
const timeLayout = "200601021504"

// Path is the identity of one backup artifact, local or remote.
// It is immutable once built; decoding a key produces a fresh value.
type Path struct {
	Cluster      string
	Node         string
	Kind         Kind
	LastModified time.Time
	RemoteKey    string
	FileName     string
}

// Compare orders paths newest first, breaking timestamp ties by remote
// key ascending so that results are deterministic.
func Compare(a, b *Path) int {
	if !a.LastModified.Equal(b.LastModified) {
		if a.LastModified.After(b.LastModified) {
			return -1
		}
		return 1
	}
	return strings.Compare(a.RemoteKey, b.RemoteKey)
}

// Codec encodes and decodes backup paths against a configured cluster
// identity and remote root prefix.
//
// Key grammar, relative to the root prefix:
//
//	<root>/<cluster>/<kindTag>/<yyyyMMddHHmm>/<node>/<fileName>
//
// Cluster, kind and date lead the key so that a key prefix selects a
// cluster+kind+day (or minute) scope for range listing.
type Codec struct {
	cluster string
	node    string
	root    string
}

// NewCodec creates a codec bound to the configured cluster identity.
func NewCodec(cluster, node, root string) *Codec {
	return &Codec{
		cluster: cluster,
		node:    node,
		root:    strings.Trim(root, "/"),
	}
}

// Encode builds the remote key for an artifact of the given kind. It is
// deterministic and never fails for well-formed fields (no separator
// characters in cluster, node or file name).
func (c *Codec) Encode(kind Kind, lastModified time.Time, fileName string) string {
	return path.Join(
		c.root,
		c.cluster,
		string(kind),
		lastModified.UTC().Format(timeLayout),
		c.node,
		fileName,
	)
}

// RemotePrefix builds the time-independent listing prefix for a kind
// under the given root.
func (c *Codec) RemotePrefix(root string, kind Kind) string {
	return path.Join(strings.Trim(root, "/"), c.cluster, string(kind))
}

// Decode parses a remote key into a Path. The key must carry the root
// prefix and exactly the five grammar segments; anything else fails with
// ErrMalformedKey. A foreign key that happens to share the prefix is
// rejected, never silently truncated.
func (c *Codec) Decode(key string) (*Path, error) {
	rel := strings.Trim(key, "/")
	if c.root != "" {
		if !strings.HasPrefix(rel, c.root+"/") {
			return nil, fmt.Errorf("%w: key %q outside root %q", ErrMalformedKey, key, c.root)
		}
		rel = rel[len(c.root)+1:]
	}

	parts := strings.Split(rel, "/")
	if len(parts) != 5 {
		return nil, fmt.Errorf("%w: key %q has %d segments, want 5", ErrMalformedKey, key, len(parts))
	}

	kind, err := ParseKind(parts[1])
	if err != nil {
		return nil, fmt.Errorf("key %q: %w", key, err)
	}

	ts, err := time.ParseInLocation(timeLayout, parts[2], time.UTC)
	if err != nil {
		return nil, fmt.Errorf("%w: key %q timestamp %q: %v", ErrMalformedKey, key, parts[2], err)
	}

	for _, seg := range []string{parts[0], parts[3], parts[4]} {
		if seg == "" {
			return nil, fmt.Errorf("%w: key %q has empty segment", ErrMalformedKey, key)
		}
	}

	return &Path{
		Cluster:      parts[0],
		Node:         parts[3],
		Kind:         kind,
		LastModified: ts,
		RemoteKey:    key,
		FileName:     parts[4],
	}, nil
}
