package index

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/papershelf/papershelf"
	"github.com/stretchr/testify/require"
)

func testLibrary() papershelf.Library {
	return papershelf.Library{
		"smith2020widgets": {
			ID:   "smith2020widgets",
			Type: "article",
			Attributes: map[string]string{
				"author": "Smith, John",
				"year":   "2020",
				"title":  "Widgets",
			},
			Tags: []string{"learning", "robotics"},
		},
		"doe2019gadgets": {
			ID:   "doe2019gadgets",
			Type: "inproceedings",
			Attributes: map[string]string{
				"author": "Doe, Jane",
				"year":   "2019",
				"title":  "Gadgets",
			},
		},
	}
}

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, testLibrary(), "example.com"))

	out := buf.String()
	require.True(t, strings.HasPrefix(out, "<pre>\n"))
	require.True(t, strings.HasSuffix(out, "</pre>\n"))

	// Entries sorted by id, each id linked to its public URL.
	doePos := strings.Index(out, "doe2019gadgets")
	smithPos := strings.Index(out, "smith2020widgets")
	require.Greater(t, smithPos, doePos)

	require.Contains(t, out,
		`@article {<a href="https://example.com/papers/s/smith2020widgets.pdf">smith2020widgets</a>,`)
	require.Contains(t, out, "    author = {Smith, John},\n")
	require.Contains(t, out, "    tags = {learning robotics},\n")

	// Entries without a tag line carry no tags attribute.
	doeBlock := out[doePos:smithPos]
	require.NotContains(t, doeBlock, "tags")
}

func TestRenderEscapesValues(t *testing.T) {
	library := papershelf.Library{
		"jones2001html": {
			ID:   "jones2001html",
			Type: "article",
			Attributes: map[string]string{
				"title": "Widgets & <Gadgets>",
			},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, library, "example.com"))
	require.Contains(t, buf.String(), "Widgets &amp; &lt;Gadgets&gt;")
}

func TestWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.html")
	require.NoError(t, Write(path, testLibrary(), "example.com"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "smith2020widgets")
}
