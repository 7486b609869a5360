package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// AppDirName is the per-user state directory under $HOME.
const AppDirName = ".studiopipe"

// AppDir returns ~/.studiopipe, or ".studiopipe" when no home directory is known.
func AppDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return AppDirName
	}
	return filepath.Join(home, AppDirName)
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// CleanPath expands "~", rejects directory traversal and returns an absolute path
func CleanPath(path string) (string, error) {
	cleaned := filepath.Clean(ExpandHome(path))

	if strings.Contains(cleaned, "..") {
		return "", fmt.Errorf("invalid path: contains directory traversal")
	}

	if !filepath.IsAbs(cleaned) {
		abs, err := filepath.Abs(cleaned)
		if err != nil {
			return "", fmt.Errorf("failed to resolve absolute path: %w", err)
		}
		cleaned = abs
	}

	return cleaned, nil
}

// JoinPath joins path components and ensures the result stays under base
func JoinPath(base string, elements ...string) (string, error) {
	cleanedBase, err := CleanPath(base)
	if err != nil {
		return "", err
	}

	joined := filepath.Clean(filepath.Join(append([]string{cleanedBase}, elements...)...))
	if joined != cleanedBase && !strings.HasPrefix(joined, cleanedBase+string(filepath.Separator)) {
		return "", fmt.Errorf("path is outside allowed directory")
	}

	return joined, nil
}
