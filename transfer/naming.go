package transfer

import (
	"errors"
	"path/filepath"
	"strings"
)

// PartSuffix is appended to the final remote path to name the temporary
// partial file that accumulates chunks before finalization.
const PartSuffix = ".part"

// ErrUnsafePath indicates a relative path that escapes its root via
// traversal components or an absolute prefix.
var ErrUnsafePath = errors.New("path escapes the transfer root")

// SafeRelativePath cleans a caller-supplied relative file path and rejects
// anything that could escape the local or remote root: absolute paths and
// paths containing traversal components. Separators are normalized to "/".
func SafeRelativePath(path string) (string, error) {
	normalized := strings.ReplaceAll(path, "\\", "/")
	cleaned := filepath.ToSlash(filepath.Clean(normalized))

	if cleaned == "." || cleaned == "" {
		return "", ErrUnsafePath
	}
	if strings.HasPrefix(cleaned, "/") {
		return "", ErrUnsafePath
	}
	for _, part := range strings.Split(cleaned, "/") {
		if part == ".." {
			return "", ErrUnsafePath
		}
	}
	return cleaned, nil
}

// RemoteFinalPath joins the remote base directory and the relative file
// path with "/" separators. The relative path must already be cleaned by
// SafeRelativePath.
func RemoteFinalPath(remoteDir, relFile string) string {
	dir := strings.TrimRight(strings.ReplaceAll(remoteDir, "\\", "/"), "/")
	if dir == "" {
		return relFile
	}
	return dir + "/" + relFile
}

// RemotePartPath returns the temporary name the partial file accumulates
// under until finalization renames it.
func RemotePartPath(finalPath string) string {
	return finalPath + PartSuffix
}
