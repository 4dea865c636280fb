package transport

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
)

// maxDirEntries bounds one list_directory response, mirroring the
// teacher's `devPanelMaxDirEntries` guard against unbounded directory
// listings.
const maxDirEntries = 5000

// excludedDirNames are never listed, matching the teacher's
// `devPanelExcludedDirs`.
var excludedDirNames = []string{".git", "node_modules"}

// FileEntry is one entry in a `list_directory` response (§6).
type FileEntry struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	IsDir bool   `json:"is_dir"`
	Size  int64  `json:"size,omitempty"`
}

// resolveWithinRoot resolves relPath against rootDir and rejects any
// result that escapes rootDir, grounded on the teacher's
// `resolveAndValidatePath` (`app_devpanel_api.go`): symlinks are
// resolved before the containment check so a symlink can't be used to
// point outside the session's working directory.
func resolveWithinRoot(rootDir, relPath string) (string, error) {
	cleaned := filepath.Clean(relPath)
	if !filepath.IsLocal(cleaned) {
		return "", fmt.Errorf("transport: path is not local (absolute, traversal, or reserved): %s", relPath)
	}

	resolvedRoot, err := filepath.EvalSymlinks(rootDir)
	if err != nil {
		return "", fmt.Errorf("transport: failed to resolve root directory: %w", err)
	}

	absPath := filepath.Join(resolvedRoot, cleaned)
	resolved, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("transport: path does not exist: %s", relPath)
		}
		return "", fmt.Errorf("transport: failed to resolve path: %w", err)
	}
	if !isWithin(resolved, resolvedRoot) {
		return "", fmt.Errorf("transport: path escapes working directory: %s", relPath)
	}
	return resolved, nil
}

func isWithin(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || !strings.HasPrefix(rel, "..")
}

// listDirectory lists rootDir/relPath, directories first then files, each
// group sorted case-insensitively — mirroring the teacher's
// `DevPanelListDir`.
func listDirectory(rootDir, relPath string) ([]FileEntry, error) {
	targetDir := rootDir
	if relPath != "" && relPath != "." {
		resolved, err := resolveWithinRoot(rootDir, relPath)
		if err != nil {
			return nil, err
		}
		targetDir = resolved
	}

	entries, err := os.ReadDir(targetDir)
	if err != nil {
		return nil, fmt.Errorf("transport: failed to read directory: %w", err)
	}

	var dirs, files []FileEntry
	for i, entry := range entries {
		if i >= maxDirEntries {
			break
		}
		name := entry.Name()
		if entry.IsDir() && slices.Contains(excludedDirNames, name) {
			continue
		}

		rel, err := filepath.Rel(rootDir, filepath.Join(targetDir, name))
		if err != nil {
			continue
		}
		fe := FileEntry{Name: name, Path: filepath.ToSlash(rel), IsDir: entry.IsDir()}
		if !entry.IsDir() {
			if info, err := entry.Info(); err == nil {
				fe.Size = info.Size()
			}
		}
		if fe.IsDir {
			dirs = append(dirs, fe)
		} else {
			files = append(files, fe)
		}
	}

	sort.Slice(dirs, func(i, j int) bool { return strings.ToLower(dirs[i].Name) < strings.ToLower(dirs[j].Name) })
	sort.Slice(files, func(i, j int) bool { return strings.ToLower(files[i].Name) < strings.ToLower(files[j].Name) })

	result := make([]FileEntry, 0, len(dirs)+len(files))
	result = append(result, dirs...)
	result = append(result, files...)
	return result, nil
}
