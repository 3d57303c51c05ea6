// Package cache maps vocabulary files to index artifacts by content hash.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/bastiangx/tagserve/internal/logger"
	"github.com/bastiangx/tagserve/internal/utils"
)

const (
	// HeaderFile and IndexFile are the artifact names inside an entry directory.
	HeaderFile = "header.bin"
	IndexFile  = "index.bin"

	defaultDirName = "tagserve"
)

// ErrSourceMissing is returned when the vocabulary file cannot be found.
var ErrSourceMissing = errors.New("source file missing")

// Entry locates the artifacts for one source content hash.
type Entry struct {
	Hash       string
	Dir        string
	HeaderPath string
	IndexPath  string
	// NeedsBuild is set when the artifacts must be (re)written before use.
	NeedsBuild bool
}

// Cache resolves entries under a root directory. Entries are never pruned.
type Cache struct {
	root string
	log  *log.Logger
}

// New creates a Cache rooted at root, or at <tmp>/tagserve when root is empty.
func New(root string, l *log.Logger) *Cache {
	if root == "" {
		root = DefaultRoot()
	}
	return &Cache{root: root, log: logger.OrDefault(l, "cache")}
}

// DefaultRoot is the cache root used when none is configured.
func DefaultRoot() string {
	return filepath.Join(os.TempDir(), defaultDirName)
}

// Root returns the cache root directory.
func (c *Cache) Root() string {
	return c.root
}

// HashFile returns the hex sha256 of the file's bytes.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrSourceMissing, path)
		}
		return "", fmt.Errorf("open source: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash source: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Resolve hashes sourcePath and returns the matching entry, creating its
// directory if needed. The entry is reused only when both artifacts exist,
// are non-empty and forceRebuild is false.
func (c *Cache) Resolve(sourcePath string, forceRebuild bool) (Entry, error) {
	hash, err := HashFile(sourcePath)
	if err != nil {
		return Entry{}, err
	}

	dir := filepath.Join(c.root, hash)
	if err := utils.EnsureDir(dir); err != nil {
		return Entry{}, fmt.Errorf("create cache dir: %w", err)
	}

	e := Entry{
		Hash:       hash,
		Dir:        dir,
		HeaderPath: filepath.Join(dir, HeaderFile),
		IndexPath:  filepath.Join(dir, IndexFile),
	}
	valid := utils.NonEmptyFile(e.HeaderPath) && utils.NonEmptyFile(e.IndexPath)
	e.NeedsBuild = forceRebuild || !valid

	c.log.Debug("resolved cache entry", "source", filepath.Base(sourcePath), "hash", hash[:12], "reuse", !e.NeedsBuild)
	return e, nil
}

// Commit runs build against temporary files in the entry directory and then
// renames them over the artifact names. On failure the temporaries are removed
// and any previous artifacts are invalidated.
func (c *Cache) Commit(e Entry, build func(header, body io.Writer) error) (err error) {
	if err := utils.EnsureDir(e.Dir); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	hf, err := os.CreateTemp(e.Dir, HeaderFile+".*.tmp")
	if err != nil {
		return fmt.Errorf("create header: %w", err)
	}
	bf, err := os.CreateTemp(e.Dir, IndexFile+".*.tmp")
	if err != nil {
		hf.Close()
		os.Remove(hf.Name())
		return fmt.Errorf("create index: %w", err)
	}

	defer func() {
		if err != nil {
			hf.Close()
			bf.Close()
			os.Remove(hf.Name())
			os.Remove(bf.Name())
			if rmErr := c.Invalidate(e); rmErr != nil {
				c.log.Warn("could not invalidate entry", "dir", e.Dir, "err", rmErr)
			}
		}
	}()

	if err = build(hf, bf); err != nil {
		return err
	}
	for _, f := range []*os.File{bf, hf} {
		if err = f.Sync(); err != nil {
			return fmt.Errorf("sync %s: %w", filepath.Base(f.Name()), err)
		}
		if err = f.Close(); err != nil {
			return fmt.Errorf("close %s: %w", filepath.Base(f.Name()), err)
		}
	}
	// the body goes first so a header never points at a stale body
	if err = os.Rename(bf.Name(), e.IndexPath); err != nil {
		return fmt.Errorf("publish index: %w", err)
	}
	if err = os.Rename(hf.Name(), e.HeaderPath); err != nil {
		return fmt.Errorf("publish header: %w", err)
	}
	return nil
}

// Invalidate removes both artifacts of an entry so the next Resolve rebuilds it.
func (c *Cache) Invalidate(e Entry) error {
	var errs []error
	for _, p := range []string{e.HeaderPath, e.IndexPath} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
