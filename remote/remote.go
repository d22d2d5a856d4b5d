// Package remote reconciles the local PDF store against its mirror on a
// remote host. Fingerprint mode hashes both sides with md5 and classifies
// each filename stem as local-only, remote-only, or content-mismatched;
// existence mode falls back to filename membership when hashing is
// unavailable or too slow. Transfers go through rsync, remote commands
// through ssh. Subprocess calls block the run; there is no retry or timeout
// beyond what the context provides.
package remote

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path"
	"sort"
	"strings"

	"github.com/papershelf/papershelf/shelf"
)

// ErrNoChecksumTool is returned when neither md5sum nor md5 is installed.
// Fingerprint mode cannot proceed without one.
var ErrNoChecksumTool = errors.New("remote: cannot locate md5sum or md5")

// Diff symbols. A stem present on both sides with equal fingerprints
// produces no output.
const (
	LocalOnly  = ">"
	RemoteOnly = "<"
	Mismatch   = "!"
)

// Change classifies one filename stem.
type Change struct {
	Stem   string
	Symbol string
}

// Runner executes external commands. It exists so tests can substitute the
// ssh/rsync/find collaborators.
type Runner interface {
	// Output runs a command and captures its stdout.
	Output(ctx context.Context, name string, args ...string) ([]byte, error)

	// Run runs a command with inherited stdio, for interactive transfers.
	Run(ctx context.Context, name string, args ...string) error
}

// ExecRunner is the real Runner backed by os/exec. Exit codes are not
// specially interpreted; a failing subprocess surfaces as the raw error.
type ExecRunner struct {
	Logger *slog.Logger
}

// Output implements Runner.
func (r ExecRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	r.log(name, args)
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return stdout.Bytes(), fmt.Errorf("running %s: %w", name, err)
	}
	return stdout.Bytes(), nil
}

// Run implements Runner.
func (r ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	r.log(name, args)
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("running %s: %w", name, err)
	}
	return nil
}

func (r ExecRunner) log(name string, args []string) {
	if r.Logger != nil {
		r.Logger.Debug("exec", "command", name, "args", strings.Join(args, " "))
	}
}

// Reconciler compares and mirrors the local library against the remote
// store.
type Reconciler struct {
	libraryDir string
	remoteHost string
	remotePath string
	runner     Runner
	lookPath   func(string) (string, error)
	logger     *slog.Logger
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLookPath overrides executable resolution, for tests.
func WithLookPath(lookPath func(string) (string, error)) Option {
	return func(r *Reconciler) {
		r.lookPath = lookPath
	}
}

// WithLogger sets the logger for reconciliation events.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) {
		r.logger = logger
	}
}

// New creates a Reconciler for the given local library directory and remote
// host/path.
func New(libraryDir, remoteHost, remotePath string, runner Runner, opts ...Option) *Reconciler {
	r := &Reconciler{
		libraryDir: libraryDir,
		remoteHost: remoteHost,
		remotePath: remotePath,
		runner:     runner,
		lookPath:   exec.LookPath,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// checksumCommand resolves the local md5 executable and its invocation
// convention: md5sum emits "hash  filename" pairs natively, BSD md5 needs
// -r to do the same. Neither being present is fatal.
func (r *Reconciler) checksumCommand() ([]string, error) {
	if p, err := r.lookPath("md5sum"); err == nil {
		return []string{p}, nil
	}
	if p, err := r.lookPath("md5"); err == nil {
		return []string{p, "-r"}, nil
	}
	return nil, ErrNoChecksumTool
}

// LocalFingerprints hashes every .pdf under the local library root.
func (r *Reconciler) LocalFingerprints(ctx context.Context) (map[string]string, error) {
	md5cmd, err := r.checksumCommand()
	if err != nil {
		return nil, err
	}
	args := []string{r.libraryDir, "-name", "*.pdf", "-exec"}
	args = append(args, md5cmd...)
	args = append(args, "{}", ";")

	out, err := r.runner.Output(ctx, "find", args...)
	if err != nil {
		return nil, fmt.Errorf("hashing local files: %w", err)
	}
	return parseChecksums(out), nil
}

// RemoteFingerprints hashes every .pdf under the remote root over ssh.
func (r *Reconciler) RemoteFingerprints(ctx context.Context) (map[string]string, error) {
	script := fmt.Sprintf("find %s -name '*.pdf' -exec md5sum '{}' ';'", r.remotePath)
	out, err := r.runner.Output(ctx, "ssh", r.remoteHost, script)
	if err != nil {
		return nil, fmt.Errorf("hashing remote files: %w", err)
	}
	return parseChecksums(out), nil
}

// RemoteStems lists the filename stems of every .pdf on the remote store.
func (r *Reconciler) RemoteStems(ctx context.Context) ([]string, error) {
	script := fmt.Sprintf("find %s -name '*.pdf'", r.remotePath)
	out, err := r.runner.Output(ctx, "ssh", r.remoteHost, script)
	if err != nil {
		return nil, fmt.Errorf("listing remote files: %w", err)
	}
	var stems []string
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		stems = append(stems, shelf.Stem(line))
	}
	return stems, nil
}

// FingerprintDiff collects fingerprints from both sides and classifies every
// stem, sorted.
func (r *Reconciler) FingerprintDiff(ctx context.Context) ([]Change, error) {
	local, err := r.LocalFingerprints(ctx)
	if err != nil {
		return nil, err
	}
	remote, err := r.RemoteFingerprints(ctx)
	if err != nil {
		return nil, err
	}
	return DiffFingerprints(local, remote), nil
}

// ExistenceDiff classifies stems by presence only. No mismatch symbol is
// possible in this mode.
func (r *Reconciler) ExistenceDiff(ctx context.Context, localStems []string) ([]Change, error) {
	remoteStems, err := r.RemoteStems(ctx)
	if err != nil {
		return nil, err
	}
	return DiffExistence(localStems, remoteStems), nil
}

// Push mirrors the local library to the remote store, excluding dotfiles.
func (r *Reconciler) Push(ctx context.Context) error {
	return r.runner.Run(ctx, "rsync",
		"--archive", "--progress", "--rsh=ssh", "--exclude", ".*",
		r.libraryDir+"/",
		fmt.Sprintf("%s:%s", r.remoteHost, r.remotePath),
	)
}

// Pull mirrors the remote store into the local library, excluding dotfiles.
func (r *Reconciler) Pull(ctx context.Context) error {
	return r.runner.Run(ctx, "rsync",
		"--archive", "--progress", "--rsh=ssh", "--exclude", ".*",
		fmt.Sprintf("%s:%s/", r.remoteHost, r.remotePath),
		r.libraryDir,
	)
}

// RemoveRemote deletes a paper from the remote store.
func (r *Reconciler) RemoveRemote(ctx context.Context, stem string) error {
	if stem == "" {
		return errors.New("remote: empty file stem")
	}
	letter := strings.ToLower(stem[:1])
	remoteFile := path.Join(r.remotePath, letter, stem+".pdf")
	return r.runner.Run(ctx, "ssh", r.remoteHost, fmt.Sprintf("rm -vf '%s'", remoteFile))
}

// DiffFingerprints buckets the union of stems: local-only `>`, remote-only
// `<`, differing content `!`. Equal fingerprints produce no change. Results
// are sorted by stem.
func DiffFingerprints(local, remote map[string]string) []Change {
	var changes []Change
	for stem, hash := range local {
		remoteHash, ok := remote[stem]
		switch {
		case !ok:
			changes = append(changes, Change{Stem: stem, Symbol: LocalOnly})
		case hash != remoteHash:
			changes = append(changes, Change{Stem: stem, Symbol: Mismatch})
		}
	}
	for stem := range remote {
		if _, ok := local[stem]; !ok {
			changes = append(changes, Change{Stem: stem, Symbol: RemoteOnly})
		}
	}
	sortChanges(changes)
	return changes
}

// DiffExistence buckets stems by set membership only.
func DiffExistence(localStems, remoteStems []string) []Change {
	local := make(map[string]struct{}, len(localStems))
	for _, s := range localStems {
		local[s] = struct{}{}
	}
	remote := make(map[string]struct{}, len(remoteStems))
	for _, s := range remoteStems {
		remote[s] = struct{}{}
	}

	var changes []Change
	for stem := range local {
		if _, ok := remote[stem]; !ok {
			changes = append(changes, Change{Stem: stem, Symbol: LocalOnly})
		}
	}
	for stem := range remote {
		if _, ok := local[stem]; !ok {
			changes = append(changes, Change{Stem: stem, Symbol: RemoteOnly})
		}
	}
	sortChanges(changes)
	return changes
}

// Report writes one "symbol stem" line per change.
func Report(w io.Writer, changes []Change) {
	for _, c := range changes {
		fmt.Fprintf(w, "%s %s\n", c.Symbol, c.Stem)
	}
}

// parseChecksums parses "hash  path" lines into a stem-to-hash map. The path
// is everything after the first whitespace run, so file names containing
// spaces survive intact.
func parseChecksums(out []byte) map[string]string {
	fingerprints := make(map[string]string)
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		idx := strings.IndexAny(line, " \t")
		if idx < 0 {
			continue
		}
		hash := line[:idx]
		path := strings.TrimLeft(line[idx:], " \t")
		if path == "" {
			continue
		}
		fingerprints[shelf.Stem(path)] = hash
	}
	return fingerprints
}

func sortChanges(changes []Change) {
	sort.Slice(changes, func(i, j int) bool {
		return changes[i].Stem < changes[j].Stem
	})
}
