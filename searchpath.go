package metaschema

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/golangoscal/metaschema/internal/types"
)

// PathEnv names the environment variable listing extra asset directories.
// A leading "+" appends to the defaults, a leading "-" prepends, anything
// else replaces them. Directories are separated by ":".
const PathEnv = "METASCHEMA_PATH"

type pathOp int

const (
	pathReplace pathOp = iota
	pathAppend
	pathPrepend
)

// discoverSystemProviders returns a Dir provider per discovered directory.
func discoverSystemProviders(logger types.Logger) []Provider {
	var providers []Provider
	for _, d := range discoverSystemPaths(logger) {
		if p, err := Dir(d); err == nil {
			providers = append(providers, p)
		}
	}
	return providers
}

// discoverSystemPaths returns asset directories from the environment and
// the user cache, deduplicated and filtered to directories that exist.
func discoverSystemPaths(logger types.Logger) []string {
	paths := defaultPaths()
	if v := os.Getenv(PathEnv); v != "" {
		paths = applyEnv(v, paths)
	}
	paths = filterExistingDirs(dedup(paths))
	logger.Log(slog.LevelDebug, "system paths discovered", slog.Any("paths", paths))
	return paths
}

// SystemPaths returns the directories WithSystemPaths would search.
func SystemPaths() []string {
	return discoverSystemPaths(types.Logger{})
}

func defaultPaths() []string {
	var paths []string
	if dir, err := os.UserCacheDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "metaschema", "assets"))
	}
	return paths
}

func applyEnv(value string, current []string) []string {
	if strings.HasPrefix(value, "+") {
		return applyOp(pathAppend, splitPaths(value[1:]), current)
	}
	if strings.HasPrefix(value, "-") {
		return applyOp(pathPrepend, splitPaths(value[1:]), current)
	}
	return splitPaths(value)
}

func applyOp(op pathOp, dirs, current []string) []string {
	switch op {
	case pathAppend:
		return append(current, dirs...)
	case pathPrepend:
		return append(dirs, current...)
	default:
		return dirs
	}
}

func splitPaths(s string) []string {
	if s == "" {
		return nil
	}
	var result []string
	for _, p := range strings.Split(s, ":") {
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

func dedup(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	var result []string
	for _, p := range paths {
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			result = append(result, p)
		}
	}
	return result
}

func filterExistingDirs(paths []string) []string {
	var result []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err == nil && info.IsDir() {
			result = append(result, p)
		}
	}
	return result
}
