package loader

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"text/template"
)

//go:embed sql
var embedded embed.FS

// TemplateData is what load templates can reference.
type TemplateData struct {
	Table        string
	SnapshotPath string
}

// Templates renders SQL templates from a search path.
type Templates struct {
	fsys fs.FS
}

// NewTemplates uses dir as the search path, or the embedded templates when
// dir is empty.
func NewTemplates(dir string) *Templates {
	if dir == "" {
		return &Templates{fsys: embedded}
	}
	return &Templates{fsys: os.DirFS(dir)}
}

var funcs = template.FuncMap{
	"sqlString": sqlString,
}

// Render executes the template at name (relative to the search path).
func (t *Templates) Render(name string, data TemplateData) (string, error) {
	raw, err := fs.ReadFile(t.fsys, name)
	if err != nil {
		return "", fmt.Errorf("read template %s: %w", name, err)
	}
	tmpl, err := template.New(name).Funcs(funcs).Option("missingkey=error").Parse(string(raw))
	if err != nil {
		return "", fmt.Errorf("parse template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render template %s: %w", name, err)
	}
	return buf.String(), nil
}

// sqlString quotes s as a SQL string literal.
func sqlString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
