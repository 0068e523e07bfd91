package backup

import (
	"strings"
	"time"
)

// Naming convention for manifest files, local and remote. The .tmp
// variant marks an in-progress write and is matched by the local prune
// sweep alongside the final name.
const (
	ManifestPrefix     = "meta_v2_"
	ManifestSuffix     = ".json"
	ManifestTempSuffix = ManifestSuffix + ".tmp"
)

// ManifestFileName builds the canonical manifest file name for a backup
// taken at the given instant.
func ManifestFileName(t time.Time) string {
	return ManifestPrefix + t.UTC().Format(timeLayout) + ManifestSuffix
}

// IsManifestFile reports whether a file name follows the manifest naming
// convention, including the transient in-progress variant. These two
// forms are the only names the local prune sweep recognizes.
func IsManifestFile(name string) bool {
	if !strings.HasPrefix(name, ManifestPrefix) {
		return false
	}
	return strings.HasSuffix(name, ManifestSuffix) || strings.HasSuffix(name, ManifestTempSuffix)
}
