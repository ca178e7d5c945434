// Package datasource enumerates and tracks the directories a question can be
// answered from.
package datasource

import (
	"bufio"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// HiddenPatterns exclude dot files and dunder entries at every depth.
var HiddenPatterns = []string{".*", "__*"}

// ListOptions tune ListRelativeFiles.
type ListOptions struct {
	// RespectGitignore also skips paths matched by the root's .gitignore.
	RespectGitignore bool
	// Extra ignore patterns in .gitignore syntax.
	Ignore []string
}

// ListRelativeFiles lists every file under root, top-down: the files of a
// directory come before its subdirectories, names sorted within a directory.
// Paths are relative to root and use forward slashes. Symlinked directories are
// not followed; unreadable subdirectories are skipped.
func ListRelativeFiles(root string) ([]string, error) {
	return ListRelativeFilesWithOptions(root, ListOptions{})
}

// ListRelativeFilesWithOptions is ListRelativeFiles with extra filters.
func ListRelativeFilesWithOptions(root string, opts ListOptions) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat datasource: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("datasource %s is not a directory", root)
	}

	l := &lister{root: root, matcher: compileMatcher(root, opts)}
	if err := l.walk(""); err != nil {
		return nil, err
	}
	return l.files, nil
}

func compileMatcher(root string, opts ListOptions) *gitignore.GitIgnore {
	patterns := append([]string(nil), HiddenPatterns...)
	patterns = append(patterns, opts.Ignore...)
	if opts.RespectGitignore {
		if lines, err := readGitignoreLines(filepath.Join(root, ".gitignore")); err == nil {
			patterns = append(patterns, lines...)
		}
	}
	return gitignore.CompileIgnoreLines(patterns...)
}

type lister struct {
	root    string
	matcher *gitignore.GitIgnore
	files   []string
}

// walk lists rel (slash-separated, "" for the root). Only a failure to read the
// root itself is an error.
func (l *lister) walk(rel string) error {
	entries, err := os.ReadDir(filepath.Join(l.root, filepath.FromSlash(rel)))
	if err != nil {
		if rel == "" {
			return fmt.Errorf("read datasource: %w", err)
		}
		return nil
	}

	var dirs []string
	for _, e := range entries { // os.ReadDir sorts by name
		p := path.Join(rel, e.Name())
		isDir := e.IsDir()
		// "dir/" patterns only match with the trailing slash
		if l.matcher.MatchesPath(p) || (isDir && l.matcher.MatchesPath(p+"/")) {
			continue
		}
		if e.Type()&os.ModeSymlink != 0 {
			target, err := os.Stat(filepath.Join(l.root, filepath.FromSlash(p)))
			if err != nil || target.IsDir() {
				continue
			}
		}
		if isDir {
			dirs = append(dirs, p)
			continue
		}
		l.files = append(l.files, p)
	}

	for _, d := range dirs {
		if err := l.walk(d); err != nil {
			return err
		}
	}
	return nil
}

// readGitignoreLines reads patterns from a .gitignore file.
func readGitignoreLines(p string) ([]string, error) {
	file, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}
