package utils

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

func GetPathInfo(relPath string) (fullPath string, parentDir string, err error) {
	// Convert to absolute path (resolves ../../ and cleans the path)
	fullPath, err = filepath.Abs(relPath)
	if err != nil {
		return "", "", err
	}

	// Get the directory containing the file
	parentDir = filepath.Dir(fullPath)

	return fullPath, parentDir, nil
}

// CollectFiles resolves path to the files it names. A directory yields its
// direct entries whose extension is in exts, sorted by name; a file yields
// itself regardless of extension.
func CollectFiles(path string, exts ...string) (files []string, isDir bool, err error) {
	fullPath, _, err := GetPathInfo(path)
	if err != nil {
		return nil, false, err
	}
	info, err := os.Stat(fullPath)
	if err != nil {
		return nil, false, err
	}
	if !info.IsDir() {
		return []string{fullPath}, false, nil
	}

	entries, err := os.ReadDir(fullPath)
	if err != nil {
		return nil, true, err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		for _, want := range exts {
			if ext == want {
				files = append(files, filepath.Join(fullPath, entry.Name()))
				break
			}
		}
	}
	sort.Strings(files)
	return files, true, nil
}

// SwapExt replaces the extension of path with ext (which includes the dot).
func SwapExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}

// BaseName is the file name of path without its extension.
func BaseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// WriteFileAtomic writes data to a temporary file next to path and renames
// it into place, so readers never observe a partial file.
func WriteFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
