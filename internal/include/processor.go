// Package include resolves psql-style \i directives when source scripts are
// loaded, so an asset registered from a top-level script carries the full SQL
// of every file it pulls in.
package include

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Matches: \i filename, with an optional trailing semicolon.
var includeDirective = regexp.MustCompile(`^\s*\\i\s+([^\s;]+)\s*;?\s*$`)

// Processor expands \i directives. Included files must live inside the base
// directory; traversal outside it is rejected.
type Processor struct {
	baseDir string
	active  map[string]bool
}

// NewProcessor creates a Processor rooted at baseDir.
func NewProcessor(baseDir string) *Processor {
	return &Processor{
		baseDir: baseDir,
		active:  make(map[string]bool),
	}
}

// ProcessFile returns the content of filename with every \i directive
// replaced by the included file's expanded content. The base directory is
// rebased to the file's own directory.
func (p *Processor) ProcessFile(filename string) (string, error) {
	absPath, err := filepath.Abs(filename)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path for %s: %w", filename, err)
	}

	p.baseDir = filepath.Dir(absPath)
	p.active = make(map[string]bool)
	return p.expand(absPath)
}

func (p *Processor) expand(filename string) (string, error) {
	if p.active[filename] {
		return "", fmt.Errorf("circular dependency detected: %s", filename)
	}
	p.active[filename] = true
	// Unmark on return so the same file may be included from separate branches.
	defer delete(p.active, filename)

	content, err := os.ReadFile(filename)
	if err != nil {
		return "", fmt.Errorf("failed to read file %s: %w", filename, err)
	}

	currentDir := filepath.Dir(filename)
	lines := strings.Split(string(content), "\n")
	var out strings.Builder

	for i, line := range lines {
		matches := includeDirective.FindStringSubmatch(line)
		if matches == nil {
			out.WriteString(line)
			if i < len(lines)-1 {
				out.WriteString("\n")
			}
			continue
		}

		resolved, err := p.resolve(matches[1], currentDir)
		if err != nil {
			return "", fmt.Errorf("line %d: %w", i+1, err)
		}
		included, err := p.expand(resolved)
		if err != nil {
			return "", fmt.Errorf("line %d: %w", i+1, err)
		}
		out.WriteString(included)
		if !strings.HasSuffix(included, "\n") {
			out.WriteString("\n")
		}
	}

	return out.String(), nil
}

// resolve maps an include path to an absolute path inside the base directory.
func (p *Processor) resolve(includePath, currentDir string) (string, error) {
	cleanPath := filepath.Clean(includePath)
	if strings.Contains(cleanPath, "..") {
		return "", fmt.Errorf("directory traversal not allowed: %s", includePath)
	}

	absPath, err := filepath.Abs(filepath.Join(currentDir, cleanPath))
	if err != nil {
		return "", fmt.Errorf("failed to resolve include path %s: %w", includePath, err)
	}

	baseAbs, err := filepath.Abs(p.baseDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base directory: %w", err)
	}
	relPath, err := filepath.Rel(baseAbs, absPath)
	if err != nil || strings.HasPrefix(relPath, "..") {
		return "", fmt.Errorf("include path %s is outside the base directory %s", includePath, p.baseDir)
	}

	if _, err := os.Stat(absPath); os.IsNotExist(err) {
		return "", fmt.Errorf("included file does not exist: %s", absPath)
	}
	return absPath, nil
}
