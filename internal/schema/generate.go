package schema

import (
	"bytes"
	"fmt"
	"go/format"
	"os"
	"path/filepath"
	"text/template"
)

// DefaultPackage is the package name used when none is given.
const DefaultPackage = "protocol"

var idsTemplate = template.Must(template.New("ids").Funcs(template.FuncMap{
	"offsetName": offsetName,
}).Parse(`// Code generated by protogen. DO NOT EDIT.

package {{.Package}}

import "github.com/spire-dev/spire/pkg/wire"

// Category offsets.
const (
{{- range .Set.Categories}}
	{{offsetName .Name}} uint16 = {{.Offset}}
{{- end}}
)

// Protocol ids.
const (
{{- range $i, $c := .Groups}}
{{- if $i}}
{{end}}
{{- range $c}}
	{{.Name}}ID uint16 = {{.ID}}
{{- end}}
{{- end}}
)

var categories = []Category{
{{- range .Set.Categories}}
	{Name: "{{.Name}}", Offset: {{offsetName .Name}}},
{{- end}}
}

var types = []Type{
{{- range .Set.Messages}}
	{ID: {{.Name}}ID, Name: "{{.Name}}", Category: "{{.Category}}", new: func() wire.Message { return new({{.Name}}) }},
{{- end}}
}
{{range .Set.Messages}}
func (*{{.Name}}) ProtocolID() uint16 { return {{.Name}}ID }
{{- end}}
`))

type templateData struct {
	Package string
	Set     *Set
	Groups  [][]Message
}

// Generate renders the id table for set as gofmt-ed Go source.
func Generate(set *Set, pkg string) ([]byte, error) {
	if pkg == "" {
		pkg = DefaultPackage
	}

	data := templateData{Package: pkg, Set: set}
	for _, c := range set.Categories {
		var group []Message
		for _, m := range set.Messages {
			if m.Category == c.Name {
				group = append(group, m)
			}
		}
		if len(group) > 0 {
			data.Groups = append(data.Groups, group)
		}
	}

	var buf bytes.Buffer
	if err := idsTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	out, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("format generated source: %w", err)
	}
	return out, nil
}

// Compile loads dir and writes the generated source to out. It reports
// whether out changed; an unchanged file is not rewritten.
func Compile(dir, out, pkg string) (bool, error) {
	set, err := Load(dir)
	if err != nil {
		return false, err
	}
	src, err := Generate(set, pkg)
	if err != nil {
		return false, err
	}

	if old, err := os.ReadFile(out); err == nil && bytes.Equal(old, src) {
		return false, nil
	}

	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return false, err
	}
	tmp := out + ".tmp"
	if err := os.WriteFile(tmp, src, 0o644); err != nil {
		return false, err
	}
	if err := os.Rename(tmp, out); err != nil {
		return false, err
	}
	return true, nil
}
