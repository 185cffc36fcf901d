package config

import (
	"os"
	"path/filepath"
	"strings"
)

// ExpandPath resolves a leading ~/ and $VARS, then cleans the result.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, rest)
		}
	}

	return filepath.Clean(os.ExpandEnv(path))
}

// EnsureDir creates path with user-only permissions. "" and "." are left
// alone.
func EnsureDir(path string) error {
	if path == "" || path == "." {
		return nil
	}
	return os.MkdirAll(path, 0700)
}

func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
