package tags

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/papershelf/papershelf"
	"github.com/stretchr/testify/require"
)

func TestReadMissingFile(t *testing.T) {
	byID, err := Read(filepath.Join(t.TempDir(), "papers"))
	require.NoError(t, err)
	require.Empty(t, byID)
}

func TestReadSkipsBlankLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "papers")
	content := "smith2020widgets robotics learning\n\n   \ndoe2019gadgets hci\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	byID, err := Read(path)
	require.NoError(t, err)
	require.Len(t, byID, 2)
	require.Equal(t, []string{"learning", "robotics"}, byID["smith2020widgets"])
	require.Equal(t, []string{"hci"}, byID["doe2019gadgets"])
}

func TestTagAccumulation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "papers")

	// Tagging the same id twice must union, not replace.
	require.NoError(t, Append(path, "smith2020widgets", []string{"robotics", "learning"}))
	require.NoError(t, Append(path, "smith2020widgets", []string{"planning", "robotics"}))

	byID, err := Read(path)
	require.NoError(t, err)
	require.Equal(t, []string{"learning", "planning", "robotics"}, byID["smith2020widgets"])
}

func TestAppendNeverRewrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "papers")
	require.NoError(t, Append(path, "a2000b", []string{"one"}))
	require.NoError(t, Append(path, "a2000b", []string{"two"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "a2000b one\na2000b two\n", string(data))
}

func TestApply(t *testing.T) {
	library := papershelf.Library{
		"smith2020widgets": {ID: "smith2020widgets", Type: "article", Attributes: map[string]string{}},
		"doe2019gadgets":   {ID: "doe2019gadgets", Type: "article", Attributes: map[string]string{}},
	}
	Apply(library, map[string][]string{
		"smith2020widgets": {"robotics"},
		"ghost1999entry":   {"ignored"},
	})

	require.Equal(t, []string{"robotics"}, library["smith2020widgets"].Tags)
	// Absence of a tag line means no tags attribute, not an empty set.
	require.Nil(t, library["doe2019gadgets"].Tags)
}

func TestAll(t *testing.T) {
	byID := map[string][]string{
		"a2000b": {"Zebra", "apple"},
		"c2001d": {"apple", "Mango"},
	}
	require.Equal(t, []string{"apple", "Mango", "Zebra"}, All(byID))
}
