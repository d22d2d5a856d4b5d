// Package cache memoizes parsed libraries so repeated invocations skip the
// BibTeX parser. Snapshots live in a bbolt database keyed by source path,
// with the payload zstd-compressed above a small threshold.
//
// A snapshot is valid while the stored BLAKE3 digest of the source matches
// the file on disk. This is deliberately stronger than the classic
// mtime-newer-than-source heuristic, which misses edits that land within the
// filesystem's timestamp granularity.
package cache

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
	"go.etcd.io/bbolt"

	"github.com/papershelf/papershelf"
	"github.com/papershelf/papershelf/bibtex"
)

// compressionThreshold is the minimum payload size before compression is
// considered. zstd overhead is not worth it for smaller snapshots.
const compressionThreshold = 2048

var bucketLibraries = []byte("libraries")

const (
	encodingIdentity = "identity"
	encodingZstd     = "zstd"
)

// envelope is the stored form of a library snapshot.
type envelope struct {
	SourceDigest papershelf.Hash `json:"source_digest"`
	CachedAt     time.Time       `json:"cached_at"`
	Encoding     string          `json:"encoding"`
	RawSize      int             `json:"raw_size"`
	Payload      []byte          `json:"payload"`
}

// Store is a bbolt-backed cache of parsed libraries.
type Store struct {
	db      *bbolt.DB
	encoder *zstd.Encoder
	decoder *zstd.Decoder
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger for cache events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithNow sets the time function for testing.
func WithNow(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Open opens (creating if necessary) the cache database at the given path.
// Parent directories are created as needed.
func Open(path string, opts ...Option) (*Store, error) {
	s := &Store{
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketLibraries)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating cache bucket: %w", err)
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		_ = db.Close()
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}

	s.db = db
	s.encoder = encoder
	s.decoder = decoder
	return s, nil
}

// Close closes the database and releases codec resources.
func (s *Store) Close() error {
	if s.encoder != nil {
		s.encoder.Close()
		s.encoder = nil
	}
	if s.decoder != nil {
		s.decoder.Close()
		s.decoder = nil
	}
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Load returns the Library for the given BibTeX source, from cache when the
// stored source digest still matches, otherwise by re-parsing and refreshing
// the snapshot. Duplicate-id diagnostics are returned only when the source
// was actually parsed. A parse failure is returned as-is; the cache never
// masks it.
func (s *Store) Load(sourcePath string) (papershelf.Library, []string, error) {
	src, err := os.ReadFile(sourcePath)
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", sourcePath, err)
	}
	digest := papershelf.HashBytes(src)

	if library, ok := s.lookup(sourcePath, digest); ok {
		s.logger.Debug("cache hit", "source", sourcePath, "digest", digest.ShortString())
		return library, nil, nil
	}

	doc, err := bibtex.Parse(src)
	if err != nil {
		return nil, nil, err
	}

	if err := s.put(sourcePath, digest, doc.Library); err != nil {
		return nil, nil, fmt.Errorf("caching %s: %w", sourcePath, err)
	}
	s.logger.Debug("cache refreshed", "source", sourcePath, "entries", len(doc.Library))
	return doc.Library, doc.Duplicates, nil
}

func (s *Store) lookup(sourcePath string, digest papershelf.Hash) (papershelf.Library, bool) {
	var raw []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(bucketLibraries).Get([]byte(sourcePath)); v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil || raw == nil {
		return nil, false
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.logger.Warn("discarding unreadable cache snapshot", "source", sourcePath, "error", err)
		return nil, false
	}
	if env.SourceDigest != digest {
		return nil, false
	}

	payload := env.Payload
	if env.Encoding == encodingZstd {
		payload, err = s.decoder.DecodeAll(env.Payload, nil)
		if err != nil {
			s.logger.Warn("discarding corrupt cache snapshot", "source", sourcePath, "error", err)
			return nil, false
		}
	}

	var library papershelf.Library
	if err := json.Unmarshal(payload, &library); err != nil {
		s.logger.Warn("discarding corrupt cache snapshot", "source", sourcePath, "error", err)
		return nil, false
	}
	return library, true
}

func (s *Store) put(sourcePath string, digest papershelf.Hash, library papershelf.Library) error {
	payload, err := json.Marshal(library)
	if err != nil {
		return fmt.Errorf("encoding library: %w", err)
	}

	env := envelope{
		SourceDigest: digest,
		CachedAt:     s.now(),
		Encoding:     encodingIdentity,
		RawSize:      len(payload),
		Payload:      payload,
	}
	if len(payload) >= compressionThreshold {
		compressed := s.encoder.EncodeAll(payload, nil)
		if len(compressed) < len(payload) {
			env.Encoding = encodingZstd
			env.Payload = compressed
		}
	}

	raw, err := json.Marshal(&env)
	if err != nil {
		return fmt.Errorf("encoding envelope: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketLibraries).Put([]byte(sourcePath), raw)
	})
}
