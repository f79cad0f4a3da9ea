// Package promptcache persists provider responses keyed by the exact request
// content. Entries are append-only: a prompt replayed with the same model and
// sampling parameters is served from disk instead of the network, which keeps
// reruns cheap and reproducible. Nothing is ever evicted.
package promptcache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"litsieve/internal/llm"
	"litsieve/internal/logging"
)

// Entry is one stored response.
type Entry struct {
	Key      string    `json:"key"`
	Response string    `json:"response"`
	Model    string    `json:"model"`
	CachedAt time.Time `json:"cached_at"`
}

// Store is a directory-backed content-addressed cache. An empty directory
// path disables the store entirely (both Get and Put become no-ops).
type Store struct {
	dir    string
	logger *slog.Logger
	now    func() time.Time
}

// NewStore creates a cache rooted at dir. The directory is created lazily on
// first Put.
func NewStore(dir string, logger *slog.Logger) *Store {
	return &Store{
		dir:    strings.TrimSpace(dir),
		logger: logging.NewComponentLogger(logger, "promptcache"),
		now:    time.Now,
	}
}

// Key derives the deterministic digest for a request. Identical prompt, model,
// and sampling parameters always map to the same key, regardless of which
// stage issued the request. The prompt is NFC-normalized first so equivalent
// Unicode spellings cannot split one logical entry in two.
func Key(prompt, model string, params llm.Params) string {
	h := sha256.New()
	h.Write([]byte(norm.NFC.String(prompt)))
	h.Write([]byte{0})
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatFloat(params.Temperature, 'f', -1, 64)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatFloat(params.TopP, 'f', -1, 64)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(params.MaxTokens)))
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the stored response for key. A missing entry returns ok=false
// with a nil error; an unreadable or corrupt entry returns ok=false with the
// underlying error so the caller can log it and fall through to the network.
func (s *Store) Get(key string) (string, bool, error) {
	if s == nil || s.dir == "" || key == "" {
		return "", false, nil
	}
	data, err := os.ReadFile(s.entryPath(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read cache entry: %w", err)
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return "", false, fmt.Errorf("parse cache entry: %w", err)
	}
	if entry.Key != key {
		return "", false, fmt.Errorf("cache entry key mismatch: have %s want %s", entry.Key, key)
	}
	return entry.Response, true, nil
}

// Put stores a response under key. The write goes to a temp file first and is
// renamed into place so an interrupted write can never surface as a valid
// entry later.
func (s *Store) Put(key, response, model string) error {
	if s == nil || s.dir == "" {
		return nil
	}
	if key == "" {
		return errors.New("cache key cannot be empty")
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	entry := Entry{Key: key, Response: response, Model: model, CachedAt: s.now().UTC()}
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	path := s.entryPath(key)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath) // cleanup on failure
		return fmt.Errorf("rename temp file: %w", err)
	}

	s.logger.Debug("cached response", logging.String("key", key))
	return nil
}

// Stats summarizes the cache contents for the CLI.
type Stats struct {
	Entries    int
	TotalBytes int64
}

// Stats walks the cache directory and counts committed entries.
func (s *Store) Stats() (Stats, error) {
	var stats Stats
	if s == nil || s.dir == "" {
		return stats, nil
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return stats, nil
		}
		return stats, fmt.Errorf("read cache directory: %w", err)
	}
	for _, dirEntry := range entries {
		if dirEntry.IsDir() || !strings.HasSuffix(dirEntry.Name(), ".json") {
			continue
		}
		info, err := dirEntry.Info()
		if err != nil {
			continue
		}
		stats.Entries++
		stats.TotalBytes += info.Size()
	}
	return stats, nil
}

// Clear removes every committed entry. Intended for operator use via the CLI,
// never called by pipeline stages.
func (s *Store) Clear() error {
	if s == nil || s.dir == "" {
		return nil
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read cache directory: %w", err)
	}
	for _, dirEntry := range entries {
		if dirEntry.IsDir() || !strings.HasSuffix(dirEntry.Name(), ".json") {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, dirEntry.Name())); err != nil {
			return fmt.Errorf("remove cache entry: %w", err)
		}
	}
	return nil
}

func (s *Store) entryPath(key string) string {
	return filepath.Join(s.dir, key+".json")
}
