// Package listing enumerates local files eligible for upload.
//
// Paths are returned relative to the scanned root with "/" separators,
// ready to be used as the File field of a transfer request on any
// platform. Directories that never hold payload data, such as VCS
// metadata, are skipped wholesale.
package listing

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// MaxFiles caps one enumeration. A scan that hits the cap fails loudly
// rather than silently uploading a truncated set.
const MaxFiles = 100000

// ErrTooManyFiles indicates the scan exceeded MaxFiles.
var ErrTooManyFiles = errors.New("too many files under root")

// ErrNotADirectory indicates the scan root is not a directory.
var ErrNotADirectory = errors.New("root is not a directory")

// defaultExcludes are directory names never descended into.
var defaultExcludes = map[string]bool{
	".git":         true,
	".svn":         true,
	".hg":          true,
	"node_modules": true,
	"__pycache__":  true,
	".cache":       true,
}

// Options configures a scan.
type Options struct {
	// Exclude lists additional directory names to skip, by base name.
	Exclude []string

	// IncludeHidden keeps dot-files and descends into dot-directories not
	// otherwise excluded. Off by default.
	IncludeHidden bool
}

// Files walks root and returns the relative slash-separated paths of every
// regular file under it, sorted. Symbolic links are not followed and files
// that cannot be stat'd are skipped with a warning rather than failing the
// whole scan.
func Files(root string, opts Options) ([]string, error) {
	fi, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return nil, ErrNotADirectory
	}

	excluded := make(map[string]bool, len(defaultExcludes)+len(opts.Exclude))
	for name := range defaultExcludes {
		excluded[name] = true
	}
	for _, name := range opts.Exclude {
		excluded[name] = true
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			logrus.WithFields(logrus.Fields{
				"function": "Files",
				"path":     path,
				"error":    walkErr.Error(),
			}).Warn("Skipping unreadable path")
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		name := d.Name()
		if d.IsDir() {
			if path == root {
				return nil
			}
			if excluded[name] || (!opts.IncludeHidden && strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return nil
		}

		// WalkDir does not follow symlinks; skip the links themselves too so
		// a listing never names a file outside the root.
		if !d.Type().IsRegular() {
			return nil
		}
		if !opts.IncludeHidden && strings.HasPrefix(name, ".") {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		files = append(files, filepath.ToSlash(rel))
		if len(files) > MaxFiles {
			return ErrTooManyFiles
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}
