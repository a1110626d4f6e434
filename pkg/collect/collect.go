// Package collect expands a mixed list of files and directories into
// batches of plain candidate files, with a cycle-safe recursion policy
// for symbolic links.
package collect

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Options control how directories are expanded.
type Options struct {
	// Recurse expands directories found below the user-supplied ones.
	Recurse bool

	// FollowSymlinks expands directories reached through symbolic
	// links when recursing.
	FollowSymlinks bool
}

// Sink receives each batch of plain files as soon as a recursion level
// produced it. A non-nil error aborts the whole traversal.
type Sink func(files []string) error

// Run walks the given paths. Files and directories discovered at the
// same level are processed independently: the level's files go to the
// sink first, then each accepted directory is expanded. Top-level
// directories are always expanded; deeper ones only when Recurse is
// set, and a directory that is itself a symlink additionally requires
// FollowSymlinks. The visited set holds symlink-resolved paths and
// strictly grows, so traversal terminates even through link cycles.
// An unreadable directory logs a warning and is skipped.
func Run(paths []string, opts Options, log *slog.Logger, sink Sink) error {
	visited := make(map[string]struct{})
	return run(paths, opts, log, sink, visited, true)
}

func run(paths []string, opts Options, log *slog.Logger, sink Sink,
	visited map[string]struct{}, topLevel bool) error {

	var dirs, files []string
	for _, p := range paths {
		if isDirectory(p) {
			if topLevel || (opts.Recurse && (opts.FollowSymlinks || !isSymlink(p))) {
				dirs = append(dirs, p)
			}
		} else {
			files = append(files, p)
		}
	}

	if len(files) > 0 {
		if err := sink(files); err != nil {
			return err
		}
	}

	for _, dir := range dirs {
		real, err := filepath.EvalSymlinks(dir)
		if err != nil {
			log.Warn("could not open directory", "path", dir, "error", err)
			continue
		}
		if _, seen := visited[real]; seen {
			continue
		}
		visited[real] = struct{}{}

		entries, err := os.ReadDir(dir)
		if err != nil {
			log.Warn("could not open directory", "path", dir, "error", err)
			continue
		}
		children := make([]string, 0, len(entries))
		for _, entry := range entries {
			if strings.HasPrefix(entry.Name(), ".") {
				continue
			}
			children = append(children, filepath.Join(dir, entry.Name()))
		}
		if err := run(children, opts, log, sink, visited, false); err != nil {
			return err
		}
	}
	return nil
}

// ExpandPattern resolves a path argument that may contain glob
// metacharacters. Plain paths pass through untouched; a pattern that
// matches nothing returns ok=false.
func ExpandPattern(path string) (matches []string, ok bool) {
	if !strings.ContainsAny(path, "*?[") {
		return []string{path}, true
	}
	matches, err := filepath.Glob(path)
	if err != nil || len(matches) == 0 {
		return nil, false
	}
	return matches, true
}

// isDirectory treats a trailing separator as a directory claim even
// before consulting the file system.
func isDirectory(path string) bool {
	if len(path) > 1 && os.IsPathSeparator(path[len(path)-1]) {
		return true
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func isSymlink(path string) bool {
	info, err := os.Lstat(strings.TrimRight(path, string(os.PathSeparator)))
	return err == nil && info.Mode()&os.ModeSymlink != 0
}
