// Package config holds the explicit configuration object threaded through
// every component. There is no ambient global state; commands construct one
// Config at startup and pass it down.
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Config describes one papershelf installation.
type Config struct {
	// LibraryDir is the root of the local PDF store.
	LibraryDir string

	// BibtexPath is the BibTeX database file.
	BibtexPath string

	// TagsPath is the append-only tag file.
	TagsPath string

	// CacheDir holds the parsed-library cache database.
	CacheDir string

	// RemoteHost is the ssh/rsync host holding the mirror.
	RemoteHost string

	// RemotePath is the mirror directory on the remote host.
	RemotePath string

	// OrgExceptions maps known non-person author values to the
	// abbreviation used when deriving entry ids. An empty abbreviation
	// means the value is recognized but contributes nothing.
	OrgExceptions map[string]string

	// IDSuffixes are regular-expression fragments that may trail an entry
	// id (disambiguation counters, "Thesis") and are stripped before the
	// id-derivation check.
	IDSuffixes []string
}

// DefaultOrgExceptions is the stock organizational-name table: committees,
// consortia, and corporate authors that are not "Last, First" people.
func DefaultOrgExceptions() map[string]string {
	return map[string]string{
		"Computing Research Association":                                  "CRA",
		"Liberal Arts Computer Science Consortium":                        "LACS",
		"The College Board":                                               "CB",
		"The Join Task Force on Computing Curricula":                      "JTFCC",
		"others":                                                          "",
		"{Google Inc.}":                                                   "Google",
		"{Gallup Inc.}":                                                   "Gallup",
		"{National Academies of Sciences, Engineering, and Medicine}":     "NASEM",
		"{UMBEL Project}":                                                 "UMBEL",
		"{the ABC Research Group}":                                        "ABC",
	}
}

// Default returns the stock configuration rooted in the user's home
// directory.
func Default() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolving home directory: %w", err)
	}
	return &Config{
		LibraryDir:    filepath.Join(home, "papers"),
		BibtexPath:    filepath.Join(home, "scholarship", "journal", "library.bib"),
		TagsPath:      filepath.Join(home, "scholarship", "journal", "papers"),
		CacheDir:      filepath.Join(home, ".cache", "papershelf"),
		RemoteHost:    "example.com",
		RemotePath:    "/srv/www/papers",
		OrgExceptions: DefaultOrgExceptions(),
		IDSuffixes:    []string{`[0-9]+`, `Thesis`},
	}, nil
}

// CachePath returns the path of the cache database file.
func (c *Config) CachePath() string {
	return filepath.Join(c.CacheDir, "library.db")
}
