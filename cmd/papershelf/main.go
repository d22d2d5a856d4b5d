// Command papershelf manages a personal library of bibliographic references:
// a BibTeX database, a directory tree of PDFs, and an append-only tag file,
// mirrored to a remote host.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/lmittmann/tint"

	"github.com/papershelf/papershelf"
	"github.com/papershelf/papershelf/cache"
	"github.com/papershelf/papershelf/config"
	"github.com/papershelf/papershelf/index"
	"github.com/papershelf/papershelf/lint"
	"github.com/papershelf/papershelf/remote"
	"github.com/papershelf/papershelf/shelf"
	"github.com/papershelf/papershelf/tags"
)

var cli struct {
	Verbose    bool   `help:"Enable debug logging." short:"v"`
	Library    string `help:"Local PDF library directory." placeholder:"DIR"`
	Bibtex     string `help:"BibTeX database file." placeholder:"FILE"`
	TagFile    string `help:"Tag file." placeholder:"FILE"`
	CacheDir   string `help:"Cache directory." placeholder:"DIR"`
	RemoteHost string `help:"Remote mirror host."`
	RemotePath string `help:"Remote mirror directory." placeholder:"DIR"`

	Read          ReadCmd          `cmd:"" help:"Store PDFs into the library layout."`
	Tag           TagCmd           `cmd:"" help:"Store a PDF and append tags for it."`
	Lint          LintCmd          `cmd:"" help:"Check the library for metadata problems."`
	Organizations OrganizationsCmd `cmd:"" help:"List institutions and schools."`
	Publishers    PublishersCmd    `cmd:"" help:"List publishers."`
	Journals      JournalsCmd      `cmd:"" help:"List journals."`
	Conferences   ConferencesCmd   `cmd:"" help:"List conference proceedings."`
	People        PeopleCmd        `cmd:"" help:"List authors and editors."`
	Tags          TagsCmd          `cmd:"" help:"List all tags."`
	Index         IndexCmd         `cmd:"" help:"Write the HTML index."`
	Sync          SyncCmd          `cmd:"" help:"Pull, reindex, and push."`
	Diff          DiffCmd          `cmd:"" help:"Compare the local library against the remote mirror."`
	Push          PushCmd          `cmd:"" help:"Mirror the local library to the remote host."`
	Pull          PullCmd          `cmd:"" help:"Mirror the remote host into the local library."`
	URL           URLCmd           `cmd:"" name:"url" help:"Print public URLs for papers."`
	Remove        RemoveCmd        `cmd:"" help:"Delete papers locally and remotely."`
}

// app carries the configuration and collaborators into every command.
type app struct {
	ctx    context.Context
	cfg    *config.Config
	logger *slog.Logger
	out    io.Writer
}

func main() {
	kctx := kong.Parse(&cli,
		kong.Name("papershelf"),
		kong.Description("Manage a personal library of bibliographic references."),
		kong.UsageOnError(),
	)

	level := slog.LevelWarn
	if cli.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: level}))
	slog.SetDefault(logger)

	cfg, err := buildConfig()
	kctx.FatalIfErrorf(err)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = kctx.Run(&app{ctx: ctx, cfg: cfg, logger: logger, out: os.Stdout})
	kctx.FatalIfErrorf(err)
}

func buildConfig() (*config.Config, error) {
	cfg, err := config.Default()
	if err != nil {
		return nil, err
	}
	if cli.Library != "" {
		cfg.LibraryDir = cli.Library
	}
	if cli.Bibtex != "" {
		cfg.BibtexPath = cli.Bibtex
	}
	if cli.TagFile != "" {
		cfg.TagsPath = cli.TagFile
	}
	if cli.CacheDir != "" {
		cfg.CacheDir = cli.CacheDir
	}
	if cli.RemoteHost != "" {
		cfg.RemoteHost = cli.RemoteHost
	}
	if cli.RemotePath != "" {
		cfg.RemotePath = cli.RemotePath
	}
	return cfg, nil
}

// loadLibrary parses (or recalls from cache) the BibTeX database, prints any
// duplicate-id diagnostics, and merges in the tag file.
func (a *app) loadLibrary() (papershelf.Library, error) {
	store, err := cache.Open(a.cfg.CachePath(), cache.WithLogger(a.logger))
	if err != nil {
		return nil, err
	}
	defer func() { _ = store.Close() }()

	library, duplicates, err := store.Load(a.cfg.BibtexPath)
	if err != nil {
		return nil, err
	}
	for _, id := range duplicates {
		fmt.Fprintf(a.out, "duplicate IDs: %s\n", id)
	}

	byID, err := tags.Read(a.cfg.TagsPath)
	if err != nil {
		return nil, err
	}
	tags.Apply(library, byID)
	return library, nil
}

func (a *app) openShelf() (*shelf.Shelf, error) {
	return shelf.New(a.cfg.LibraryDir, shelf.WithLogger(a.logger))
}

func (a *app) reconciler() *remote.Reconciler {
	return remote.New(a.cfg.LibraryDir, a.cfg.RemoteHost, a.cfg.RemotePath,
		remote.ExecRunner{Logger: a.logger},
		remote.WithLogger(a.logger))
}

func (a *app) writeIndex(library papershelf.Library) error {
	return index.Write(filepath.Join(a.cfg.LibraryDir, "index.html"), library, a.cfg.RemoteHost)
}

func (a *app) printAll(values []string) {
	for _, v := range values {
		fmt.Fprintln(a.out, v)
	}
}

// ReadCmd stores PDFs into the first-letter library layout.
type ReadCmd struct {
	Files []string `arg:"" required:"" help:"PDF files to store."`
}

func (c *ReadCmd) Run(a *app) error {
	s, err := a.openShelf()
	if err != nil {
		return err
	}
	for _, file := range c.Files {
		if _, err := s.Store(file); err != nil {
			return err
		}
	}
	return nil
}

// TagCmd stores a PDF and appends a tag line for its stem.
type TagCmd struct {
	File string   `arg:"" required:"" help:"PDF file to store and tag."`
	Tags []string `arg:"" optional:"" help:"Tags to record."`
}

func (c *TagCmd) Run(a *app) error {
	s, err := a.openShelf()
	if err != nil {
		return err
	}
	stem, err := s.Store(c.File)
	if err != nil {
		return err
	}
	return tags.Append(a.cfg.TagsPath, stem, c.Tags)
}

// LintCmd runs the four heuristic checks over the library.
type LintCmd struct{}

func (c *LintCmd) Run(a *app) error {
	library, err := a.loadLibrary()
	if err != nil {
		return err
	}
	s, err := a.openShelf()
	if err != nil {
		return err
	}
	files, err := s.Index()
	if err != nil {
		return err
	}
	lint.New(a.cfg.OrgExceptions, a.cfg.IDSuffixes, a.out).Run(library, files)
	return nil
}

// OrganizationsCmd lists institution and school values.
type OrganizationsCmd struct{}

func (c *OrganizationsCmd) Run(a *app) error {
	library, err := a.loadLibrary()
	if err != nil {
		return err
	}
	a.printAll(library.Organizations())
	return nil
}

// PublishersCmd lists publisher values.
type PublishersCmd struct{}

func (c *PublishersCmd) Run(a *app) error {
	library, err := a.loadLibrary()
	if err != nil {
		return err
	}
	a.printAll(library.Publishers())
	return nil
}

// JournalsCmd lists journal values.
type JournalsCmd struct{}

func (c *JournalsCmd) Run(a *app) error {
	library, err := a.loadLibrary()
	if err != nil {
		return err
	}
	a.printAll(library.Journals())
	return nil
}

// ConferencesCmd lists the booktitles of inproceedings entries.
type ConferencesCmd struct{}

func (c *ConferencesCmd) Run(a *app) error {
	library, err := a.loadLibrary()
	if err != nil {
		return err
	}
	a.printAll(library.Conferences())
	return nil
}

// PeopleCmd lists every author and editor.
type PeopleCmd struct{}

func (c *PeopleCmd) Run(a *app) error {
	library, err := a.loadLibrary()
	if err != nil {
		return err
	}
	a.printAll(library.People())
	return nil
}

// TagsCmd lists the sorted union of all tags.
type TagsCmd struct{}

func (c *TagsCmd) Run(a *app) error {
	byID, err := tags.Read(a.cfg.TagsPath)
	if err != nil {
		return err
	}
	a.printAll(tags.All(byID))
	return nil
}

// IndexCmd writes the HTML index into the library directory.
type IndexCmd struct{}

func (c *IndexCmd) Run(a *app) error {
	library, err := a.loadLibrary()
	if err != nil {
		return err
	}
	return a.writeIndex(library)
}

// SyncCmd pulls from the mirror, rewrites the index, and pushes back.
type SyncCmd struct{}

func (c *SyncCmd) Run(a *app) error {
	r := a.reconciler()
	if err := r.Pull(a.ctx); err != nil {
		return err
	}
	library, err := a.loadLibrary()
	if err != nil {
		return err
	}
	if err := a.writeIndex(library); err != nil {
		return err
	}
	return r.Push(a.ctx)
}

// DiffCmd reports per-file differences between local and remote stores.
type DiffCmd struct {
	Existence bool `help:"Compare by filename only, skipping content hashing."`
}

func (c *DiffCmd) Run(a *app) error {
	r := a.reconciler()

	var changes []remote.Change
	if c.Existence {
		s, err := a.openShelf()
		if err != nil {
			return err
		}
		files, err := s.Index()
		if err != nil {
			return err
		}
		stems := make([]string, 0, len(files))
		for stem := range files {
			stems = append(stems, stem)
		}
		changes, err = r.ExistenceDiff(a.ctx, stems)
		if err != nil {
			return err
		}
	} else {
		var err error
		changes, err = r.FingerprintDiff(a.ctx)
		if err != nil {
			return err
		}
	}
	remote.Report(a.out, changes)
	return nil
}

// PushCmd mirrors the local library to the remote store.
type PushCmd struct{}

func (c *PushCmd) Run(a *app) error {
	return a.reconciler().Push(a.ctx)
}

// PullCmd mirrors the remote store into the local library.
type PullCmd struct{}

func (c *PullCmd) Run(a *app) error {
	return a.reconciler().Pull(a.ctx)
}

// URLCmd prints the public URL for each paper.
type URLCmd struct {
	Files []string `arg:"" required:"" help:"Paper files or stems."`
}

func (c *URLCmd) Run(a *app) error {
	for _, file := range c.Files {
		fmt.Fprintln(a.out, papershelf.PublicURL(a.cfg.RemoteHost, shelf.Stem(file)))
	}
	return nil
}

// RemoveCmd deletes papers from both the local shelf and the remote store.
type RemoveCmd struct {
	Files []string `arg:"" required:"" help:"Paper files or stems."`
}

func (c *RemoveCmd) Run(a *app) error {
	s, err := a.openShelf()
	if err != nil {
		return err
	}
	r := a.reconciler()
	for _, file := range c.Files {
		stem := shelf.Stem(file)
		if err := r.RemoveRemote(a.ctx, stem); err != nil {
			return err
		}
		if err := s.Remove(stem); err != nil {
			return err
		}
	}
	return nil
}
