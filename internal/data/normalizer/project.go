package normalizer

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
)

// ProjectHashFromPath resolves the project hash for a source file. Gemini
// CLI names per-project directories with the sha256 of the project's
// working directory, so a 64-hex path component is taken verbatim when
// present. Otherwise the hash is computed from the file's parent directory
// path; the same path always yields the same hash.
func ProjectHashFromPath(path string) string {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if isHexHash(part) {
			return part
		}
	}
	return HashProjectDir(filepath.Dir(path))
}

// HashProjectDir computes the stable project hash for a directory path.
func HashProjectDir(dir string) string {
	sum := sha256.Sum256([]byte(filepath.Clean(dir)))
	return hex.EncodeToString(sum[:])
}

func isHexHash(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
