// Package pin reads and rewrites the requirements-style file that pins the
// documentation source to one release.
package pin

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

var (
	// ErrMultipleRequirements is returned when the pin file names more than one dependency.
	ErrMultipleRequirements = errors.New("multiple dependencies detected in requirements file, expected one")
	// ErrNoRequirement is returned when the pin file has no requirement line.
	ErrNoRequirement = errors.New("no dependency found in requirements file")
)

// name[extra,...]==version ; marker
var requirementRe = regexp.MustCompile(`^([A-Za-z0-9][A-Za-z0-9._-]*)\s*(\[[^\]]*\])?\s*==\s*([^\s;#]+)\s*(;[^#]*)?(#.*)?$`)

// Pin is one exact requirement.
type Pin struct {
	Name    string
	Extras  []string
	Version string
	Marker  string // environment marker without the leading ';'
}

// String renders the pin in requirements syntax.
func (p Pin) String() string {
	var b strings.Builder
	b.WriteString(p.Name)
	if len(p.Extras) > 0 {
		b.WriteString("[" + strings.Join(p.Extras, ",") + "]")
	}
	b.WriteString("==" + p.Version)
	if p.Marker != "" {
		b.WriteString("; " + p.Marker)
	}
	return b.String()
}

// Parse reads a pin file. Blank lines and comments are ignored and exactly one
// requirement must remain.
func Parse(r io.Reader) (Pin, error) {
	var (
		found Pin
		count int
	)
	scanner := bufio.NewScanner(r)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := strings.TrimSpace(scanner.Text())
		if isIgnorable(line) {
			continue
		}
		p, err := parseLine(line)
		if err != nil {
			return Pin{}, fmt.Errorf("line %d: %w", lineNo, err)
		}
		count++
		if count > 1 {
			return Pin{}, ErrMultipleRequirements
		}
		found = p
	}
	if err := scanner.Err(); err != nil {
		return Pin{}, fmt.Errorf("read requirements: %w", err)
	}
	if count == 0 {
		return Pin{}, ErrNoRequirement
	}
	return found, nil
}

// ParseFile reads the pin file at path.
func ParseFile(path string) (Pin, error) {
	f, err := os.Open(path) // #nosec G304 -- path comes from configuration
	if err != nil {
		return Pin{}, fmt.Errorf("open pin file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Parse(f)
}

// WriteFile rewrites the requirement line of the pin file at path to pin,
// keeping comments and blank lines.
func WriteFile(path string, p Pin) error {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from configuration
	if err != nil {
		return fmt.Errorf("read pin file: %w", err)
	}
	if _, err := Parse(strings.NewReader(string(data))); err != nil {
		return err
	}

	lines := strings.SplitAfter(string(data), "\n")
	for i, raw := range lines {
		body := strings.TrimRight(raw, "\r\n")
		trimmed := strings.TrimSpace(body)
		if isIgnorable(trimmed) {
			continue
		}
		ending := raw[len(body):]
		comment := ""
		if m := requirementRe.FindStringSubmatch(trimmed); m != nil && m[5] != "" {
			comment = "  " + m[5]
		}
		lines[i] = p.String() + comment + ending
		break
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat pin file: %w", err)
	}
	if err := os.WriteFile(path, []byte(strings.Join(lines, "")), info.Mode().Perm()); err != nil {
		return fmt.Errorf("write pin file: %w", err)
	}
	return nil
}

// WithVersion returns a copy of p pinned to version.
func (p Pin) WithVersion(version string) Pin {
	p.Version = version
	return p
}

// NormalizeTag strips a leading v from a release tag so it compares against a pin version.
func NormalizeTag(tag string) string {
	tag = strings.TrimSpace(tag)
	if len(tag) > 1 && (tag[0] == 'v' || tag[0] == 'V') && tag[1] >= '0' && tag[1] <= '9' {
		return tag[1:]
	}
	return tag
}

func isIgnorable(line string) bool {
	return line == "" || strings.HasPrefix(line, "#")
}

func parseLine(line string) (Pin, error) {
	m := requirementRe.FindStringSubmatch(line)
	if m == nil {
		return Pin{}, fmt.Errorf("requirement %q is not an exact name==version pin", line)
	}
	p := Pin{Name: m[1], Version: m[3]}
	if m[2] != "" {
		for _, e := range strings.Split(strings.Trim(m[2], "[]"), ",") {
			if e = strings.TrimSpace(e); e != "" {
				p.Extras = append(p.Extras, e)
			}
		}
	}
	if m[4] != "" {
		p.Marker = strings.TrimSpace(strings.TrimPrefix(m[4], ";"))
	}
	return p, nil
}
