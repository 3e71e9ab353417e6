package config

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// GitignoreParser reads the project .gitignore so ignored folders (exports,
// editor caches) never reach the metadata scan.
type GitignoreParser struct {
	patterns []GitignorePattern
}

type GitignorePattern struct {
	Pattern   string
	Negate    bool
	Directory bool
	Absolute  bool
}

func NewGitignoreParser() *GitignoreParser {
	return &GitignoreParser{patterns: make([]GitignorePattern, 0)}
}

// LoadGitignore loads patterns from rootPath/.gitignore. A missing file is not an error.
func (gp *GitignoreParser) LoadGitignore(rootPath string) error {
	file, err := os.Open(filepath.Join(rootPath, ".gitignore"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	return gp.readPatterns(file)
}

func (gp *GitignoreParser) readPatterns(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		gp.AddPattern(line)
	}
	return scanner.Err()
}

// AddPattern adds a single .gitignore line.
func (gp *GitignoreParser) AddPattern(line string) {
	gp.patterns = append(gp.patterns, parsePattern(line))
}

func parsePattern(line string) GitignorePattern {
	var p GitignorePattern
	if strings.HasPrefix(line, "!") {
		p.Negate = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		p.Directory = true
		line = strings.TrimSuffix(line, "/")
	}
	if strings.HasPrefix(line, "/") {
		p.Absolute = true
		line = line[1:]
	}
	p.Pattern = line
	return p
}

// ShouldIgnore reports whether a slash-separated relative path is ignored.
// Later patterns win, so a negation re-includes what an earlier line ignored.
func (gp *GitignoreParser) ShouldIgnore(path string, isDir bool) bool {
	path = filepath.ToSlash(path)
	ignored := false
	for _, p := range gp.patterns {
		bare := bareDirPattern(p)
		matched := matchGlob(bare+"/**", path)
		if !matched && (isDir || !p.Directory) {
			matched = matchGlob(bare, path)
		}
		if matched {
			ignored = !p.Negate
		}
	}
	return ignored
}

// GetExclusionPatterns returns the non-negated patterns as doublestar exclusions.
func (gp *GitignoreParser) GetExclusionPatterns() []string {
	var exclusions []string
	for _, p := range gp.patterns {
		if p.Negate {
			continue
		}
		exclusions = append(exclusions, convertToPattern(p))
	}
	return exclusions
}

func convertToPattern(p GitignorePattern) string {
	prefix := "**/"
	if p.Absolute || strings.Contains(p.Pattern, "/") {
		prefix = ""
	}
	if p.Directory {
		return prefix + p.Pattern + "/**"
	}
	return prefix + p.Pattern
}

// bareDirPattern matches the entry itself rather than a folder's contents.
func bareDirPattern(p GitignorePattern) string {
	if p.Absolute || strings.Contains(p.Pattern, "/") {
		return p.Pattern
	}
	return "**/" + p.Pattern
}

func matchGlob(pattern, path string) bool {
	ok, err := doublestar.Match(pattern, path)
	return err == nil && ok
}
