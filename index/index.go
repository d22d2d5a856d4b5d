// Package index renders the library as a single HTML page: every entry in
// BibTeX form, sorted by id, with each id linked to its public URL on the
// remote host.
package index

import (
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/papershelf/papershelf"
)

var pageTemplate = template.Must(template.New("index").Parse(`<pre>
{{range .}}@{{.Type}} {<a href="{{.URL}}">{{.ID}}</a>,
{{range .Attributes}}    {{.Name}} = {{"{"}}{{.Value}}{{"}"}},
{{end}}}

{{end}}</pre>
`))

type attribute struct {
	Name  string
	Value string
}

type row struct {
	ID         string
	Type       string
	URL        string
	Attributes []attribute
}

// Render writes the HTML index for the library to w.
func Render(w io.Writer, library papershelf.Library, host string) error {
	rows := make([]row, 0, len(library))
	for _, id := range library.IDs() {
		entry := library[id]

		attrs := make([]attribute, 0, len(entry.Attributes)+1)
		for name, value := range entry.Attributes {
			attrs = append(attrs, attribute{Name: name, Value: value})
		}
		if entry.Tags != nil {
			attrs = append(attrs, attribute{Name: "tags", Value: strings.Join(entry.Tags, " ")})
		}
		sort.Slice(attrs, func(i, j int) bool { return attrs[i].Name < attrs[j].Name })

		rows = append(rows, row{
			ID:         id,
			Type:       entry.Type,
			URL:        papershelf.PublicURL(host, id),
			Attributes: attrs,
		})
	}
	return pageTemplate.Execute(w, rows)
}

// Write renders the index to the given path. The write is atomic: content
// goes to a temp file that is renamed into place.
func Write(path string, library papershelf.Library, host string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp index: %w", err)
	}
	tmpPath := tmp.Name()

	if err := Render(tmp, library, host); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rendering index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("closing temp index: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("renaming index: %w", err)
	}
	return nil
}
