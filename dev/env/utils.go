package devenv

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"causelist-backend/lib/configutil"
)

// statePrefix marks paths in config files that live under dev/.state, where
// local databases, recorded portal traffic and live portal settings are kept.
const statePrefix = "<dev_state>"

var modName = regexp.MustCompile(`(?m)^module *([\w\-_]+)$`)

func isWorkspaceRoot(dir string) bool {
	mod, err := os.ReadFile(filepath.Join(dir, "go.mod"))
	if err != nil {
		return false
	}
	matches := modName.FindSubmatch(mod)
	return len(matches) >= 2 && string(matches[1]) == "causelist-backend"
}

// GetWorkspaceRoot walks up from the working directory to the checkout of
// this module, so tests and dev tools resolve dev/.state the same way from
// any package.
func GetWorkspaceRoot() (string, error) {
	dir, err := filepath.Abs(".")
	if err != nil {
		return "", err
	}
	for {
		if isWorkspaceRoot(dir) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", os.ErrNotExist
		}
		dir = parent
	}
}

func stateDir() (string, error) {
	root, err := GetWorkspaceRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, "dev", ".state"), nil
}

// GetStateConfig reads a json5 file from dev/.state, the live portal e2e
// test keeps its state/district/complex choice there.
func GetStateConfig[T any](path string) (T, error) {
	dir, err := stateDir()
	if err != nil {
		var out T
		return out, err
	}
	return configutil.ReadConfig[T](filepath.Join(dir, path))
}

// ResolvePath expands a leading <dev_state> to dev/.state, creating the
// directory if needed. Other paths are returned unchanged.
func ResolvePath(path string) (string, error) {
	if !strings.HasPrefix(path, statePrefix) {
		return path, nil
	}

	dir, err := stateDir()
	if err != nil {
		return "", err
	}
	err = os.MkdirAll(dir, 0777)
	if err != nil {
		return "", err
	}

	subpath := strings.TrimLeft(strings.TrimPrefix(path, statePrefix), `/\`)
	return filepath.Join(dir, subpath), nil
}
