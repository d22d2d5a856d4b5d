package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "cache", "library.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func writeSource(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "library.bib")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const source = `@article {smith2020widgets,
    author = {Smith, John},
    year = {2020},
    title = {Widgets},
}
`

func TestLoadParsesAndCaches(t *testing.T) {
	s := newTestStore(t)
	path := writeSource(t, source)

	library, dups, err := s.Load(path)
	require.NoError(t, err)
	require.Empty(t, dups)
	require.Len(t, library, 1)
	require.Equal(t, "Smith, John", library["smith2020widgets"].Attributes["author"])
}

func TestLoadCacheCoherence(t *testing.T) {
	s := newTestStore(t)
	path := writeSource(t, source)

	first, _, err := s.Load(path)
	require.NoError(t, err)

	// Unmodified source: second load is a cache hit with identical content.
	second, dups, err := s.Load(path)
	require.NoError(t, err)
	require.Empty(t, dups)
	require.Equal(t, first, second)

	// Changed source must be reflected.
	changed := `@article {smith2020widgets,
    author = {Jones, Mary},
    year = {2020},
    title = {Widgets},
}
`
	require.NoError(t, os.WriteFile(path, []byte(changed), 0o644))

	third, _, err := s.Load(path)
	require.NoError(t, err)
	require.Equal(t, "Jones, Mary", third["smith2020widgets"].Attributes["author"])
}

func TestLoadDetectsEditWithSameTimestamp(t *testing.T) {
	s := newTestStore(t)
	path := writeSource(t, source)

	_, _, err := s.Load(path)
	require.NoError(t, err)

	// Rewrite the source and force the mtime back to its original value.
	// The digest check must still invalidate the snapshot.
	info, err := os.Stat(path)
	require.NoError(t, err)
	changed := `@article {other2001note,
    title = {Different},
}
`
	require.NoError(t, os.WriteFile(path, []byte(changed), 0o644))
	require.NoError(t, os.Chtimes(path, info.ModTime(), info.ModTime()))

	library, _, err := s.Load(path)
	require.NoError(t, err)
	require.Len(t, library, 1)
	require.Contains(t, library, "other2001note")
}

func TestLoadNeverMasksParseFailure(t *testing.T) {
	s := newTestStore(t)
	path := writeSource(t, "@article {broken")

	_, _, err := s.Load(path)
	require.Error(t, err)
}

func TestLoadMissingSource(t *testing.T) {
	s := newTestStore(t)

	_, _, err := s.Load(filepath.Join(t.TempDir(), "missing.bib"))
	require.Error(t, err)
}

func TestLoadReportsDuplicatesOnlyOnParse(t *testing.T) {
	s := newTestStore(t)
	dupSource := `@article {smith2020widgets,
    title = {First},
}
@article {smith2020widgets,
    title = {Second},
}
`
	path := writeSource(t, dupSource)

	_, dups, err := s.Load(path)
	require.NoError(t, err)
	require.Equal(t, []string{"smith2020widgets"}, dups)

	// Cache hit replays no diagnostics.
	library, dups, err := s.Load(path)
	require.NoError(t, err)
	require.Empty(t, dups)
	require.Equal(t, "Second", library["smith2020widgets"].Attributes["title"])
}

func TestLoadCompressesLargeLibraries(t *testing.T) {
	s := newTestStore(t)

	var sb []byte
	for i := 0; i < 200; i++ {
		sb = append(sb, []byte(fmt.Sprintf(`@article {author%04dtopic,
    author = {Author%d, First},
    year = {2020},
    title = {A Reasonably Long Title About Topic Number %d},
}
`, i, i, i))...)
	}
	path := writeSource(t, string(sb))

	library, _, err := s.Load(path)
	require.NoError(t, err)
	require.Len(t, library, 200)

	again, _, err := s.Load(path)
	require.NoError(t, err)
	require.Equal(t, library, again)
}
