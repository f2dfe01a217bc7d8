package docset

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// ReadmeFile is the per-docset README in the aggregator repository.
const ReadmeFile = "README.md"

// Required README headings.
const (
	HeadingWhoAmI   = "Who am I"
	HeadingGenerate = "How to generate docset"
)

// Link is a titled URL.
type Link struct {
	Title string
	URL   string
}

// ReadmeData fills the README template.
type ReadmeData struct {
	Name          string
	Author        Link
	Publisher     Link   // repository that generates the docset; empty Title omits the sentence
	Requirements  []Link // tools needed to regenerate the docset
	BuildCommands []string
}

var readmeTemplate = template.Must(template.New("readme").Parse(`# {{ .Name }}

## Who am I

{{ if .Author.URL }}[{{ .Author.Title }}]({{ .Author.URL }}){{ else }}{{ .Author.Title }}{{ end }}

## How to generate docset
{{ if .Publisher.Title }}
This docset is automatically generated via [{{ .Publisher.Title }}]({{ .Publisher.URL }}).
{{ end }}
### Requirements
{{ range .Requirements }}
- [{{ .Title }}]({{ .URL }})
{{- end }}

### Build directions

To build the docs, run:

` + "```console" + `
{{- range .BuildCommands }}
$ {{ . }}
{{ end -}}
` + "```" + `
`))

// WriteReadme renders README.md into dir.
func WriteReadme(dir string, data ReadmeData) (string, error) {
	var buf bytes.Buffer
	if err := readmeTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render readme: %w", err)
	}
	path := filepath.Join(dir, ReadmeFile)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil { // #nosec G306 -- committed file
		return "", fmt.Errorf("write readme: %w", err)
	}
	return path, nil
}

// ErrInvalidReadme signals a README missing a required section or link.
var ErrInvalidReadme = errors.New("invalid docset readme")

// ValidateReadme parses the README as Markdown and checks the sections the
// aggregator's reviewers expect.
func ValidateReadme(path string) error {
	source, err := os.ReadFile(path) // #nosec G304 -- aggregator checkout
	if err != nil {
		return fmt.Errorf("read readme: %w", err)
	}

	doc := goldmark.New().Parser().Parse(text.NewReader(source))
	headings := map[string]bool{}
	links := 0
	err = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			headings[strings.TrimSpace(nodeText(node, source))] = true
		case *ast.Link, *ast.AutoLink:
			links++
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return fmt.Errorf("walk readme: %w", err)
	}

	var missing []string
	for _, h := range []string{HeadingWhoAmI, HeadingGenerate} {
		if !headings[h] {
			missing = append(missing, fmt.Sprintf("heading %q", h))
		}
	}
	if links == 0 {
		missing = append(missing, "at least one link")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidReadme, strings.Join(missing, ", "))
	}
	return nil
}

func nodeText(n ast.Node, source []byte) string {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			b.Write(t.Segment.Value(source))
			continue
		}
		b.WriteString(nodeText(c, source))
	}
	return b.String()
}
