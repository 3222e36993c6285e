package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	debversion "pault.ag/go/debian/version"
)

// ResolveRoot returns the directory holding the fragment scripts. When
// version is empty and docsDir contains versioned directories ("v1.1.0",
// "v1.1.0-alpha.6"), the newest one is used. A "subdir" inside the version
// directory is preferred when present.
func ResolveRoot(docsDir, version, subdir string) (string, error) {
	if version == "" {
		v, err := LatestVersion(docsDir)
		if err != nil {
			return "", err
		}
		version = v
	}
	root := docsDir
	if version != "" {
		root = filepath.Join(docsDir, version)
		if info, err := os.Stat(root); err != nil || !info.IsDir() {
			return "", fmt.Errorf("docs version %s not found in %s", version, docsDir)
		}
	}
	if subdir != "" {
		if info, err := os.Stat(filepath.Join(root, subdir)); err == nil && info.IsDir() {
			root = filepath.Join(root, subdir)
		}
	}
	return root, nil
}

// LatestVersion returns the name of the newest versioned directory in dir,
// or "" when there is none.
func LatestVersion(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read docs dir: %w", err)
	}

	var best string
	var bestVer debversion.Version
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		v, ok := parseDocsVersion(entry.Name())
		if !ok {
			continue
		}
		if best == "" || debversion.Compare(v, bestVer) > 0 {
			best, bestVer = entry.Name(), v
		}
	}
	return best, nil
}

// parseDocsVersion maps "v1.1.0-alpha.6" onto Debian ordering, turning the
// pre-release suffix into a tilde so it sorts before the final release.
func parseDocsVersion(name string) (debversion.Version, bool) {
	s := strings.TrimPrefix(name, "v")
	if s == "" || s[0] < '0' || s[0] > '9' {
		return debversion.Version{}, false
	}
	s = strings.Replace(s, "-", "~", 1)
	v, err := debversion.Parse(s)
	if err != nil {
		return debversion.Version{}, false
	}
	return v, true
}
