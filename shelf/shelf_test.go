package shelf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWellNamed(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"smith2020widgets.pdf", true},
		{"smith2020widgets", true},
		{"Smith2020Widgets.pdf", true},
		{"smith2020.pdf", false},
		{"smith-2020-widgets.pdf", false},
		{"2020smith.pdf", false},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, WellNamed(tt.name), "name %q", tt.name)
	}
}

func TestStem(t *testing.T) {
	require.Equal(t, "smith2020widgets", Stem("/papers/s/smith2020widgets.pdf"))
	require.Equal(t, "smith2020widgets", Stem("smith2020widgets"))
	// A bare extension has no stem at all.
	require.Equal(t, "", Stem(".pdf"))
}

func mustPath(t *testing.T, s *Shelf, stem string) string {
	t.Helper()
	path, err := s.PathFor(stem)
	require.NoError(t, err)
	return path
}

func TestNewCreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "papers")
	s, err := New(root)
	require.NoError(t, err)

	info, err := os.Stat(s.Root())
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestPathFor(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	require.Equal(t,
		filepath.Join(s.Root(), "s", "smith2020widgets.pdf"),
		mustPath(t, s, "smith2020widgets"))
	require.Equal(t,
		filepath.Join(s.Root(), "d", "Doe2021study.pdf"),
		mustPath(t, s, "Doe2021study"))
}

func TestPathForEmptyStem(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = s.PathFor("")
	require.ErrorIs(t, err, ErrEmptyStem)
}

func TestStoreAndIndex(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "papers"))
	require.NoError(t, err)

	inbox := t.TempDir()
	src := filepath.Join(inbox, "smith2020widgets.pdf")
	require.NoError(t, os.WriteFile(src, []byte("%PDF-1.4"), 0o644))

	stem, err := s.Store(src)
	require.NoError(t, err)
	require.Equal(t, "smith2020widgets", stem)

	// Moved, not copied.
	_, err = os.Stat(src)
	require.True(t, os.IsNotExist(err))

	index, err := s.Index()
	require.NoError(t, err)
	require.Equal(t, map[string]string{
		"smith2020widgets": mustPath(t, s, "smith2020widgets"),
	}, index)
}

func TestStoreEmptyStem(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "papers"))
	require.NoError(t, err)

	src := filepath.Join(t.TempDir(), ".pdf")
	require.NoError(t, os.WriteFile(src, []byte("%PDF-1.4"), 0o644))

	_, err = s.Store(src)
	require.ErrorIs(t, err, ErrEmptyStem)
}

func TestStoreInPlace(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "papers"))
	require.NoError(t, err)

	dst := mustPath(t, s, "doe2021study")
	require.NoError(t, os.MkdirAll(filepath.Dir(dst), 0o755))
	require.NoError(t, os.WriteFile(dst, []byte("%PDF-1.4"), 0o644))

	stem, err := s.Store(dst)
	require.NoError(t, err)
	require.Equal(t, "doe2021study", stem)

	_, err = os.Stat(dst)
	require.NoError(t, err)
}

func TestIndexSkipsNonPDF(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "papers"))
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(s.Root(), "s"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), "s", "smith2020widgets.pdf"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), "index.html"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), "notes.txt"), []byte("x"), 0o644))

	index, err := s.Index()
	require.NoError(t, err)
	require.Len(t, index, 1)
	require.Contains(t, index, "smith2020widgets")
}

func TestRemove(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "papers"))
	require.NoError(t, err)

	dst := mustPath(t, s, "doe2021study")
	require.NoError(t, os.MkdirAll(filepath.Dir(dst), 0o755))
	require.NoError(t, os.WriteFile(dst, []byte("x"), 0o644))

	require.NoError(t, s.Remove("doe2021study"))
	_, err = os.Stat(dst)
	require.True(t, os.IsNotExist(err))

	// Idempotent.
	require.NoError(t, s.Remove("doe2021study"))
}

func TestRemoveEmptyStem(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "papers"))
	require.NoError(t, err)

	require.ErrorIs(t, s.Remove(""), ErrEmptyStem)
}
