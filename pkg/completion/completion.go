// Package completion owns the tag metadata and the active index, and answers
// completion queries for a host application.
package completion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/semaphore"

	"github.com/bastiangx/tagserve/internal/logger"
	"github.com/bastiangx/tagserve/internal/utils"
	"github.com/bastiangx/tagserve/pkg/cache"
	"github.com/bastiangx/tagserve/pkg/index"
	"github.com/bastiangx/tagserve/pkg/tags"
)

// LoadErrorTitle is the title passed to OnError for every failed background load.
const LoadErrorTitle = "Tag autocomplete"

// ErrSourceChanged is returned when the source file kept changing between
// hashing and parsing for every load attempt.
var ErrSourceChanged = errors.New("source changed while loading")

// loadAttempts bounds how often a load restarts after the source changed
// underneath it.
const loadAttempts = 3

// State is the load lifecycle of a Provider.
type State int

const (
	Unloaded State = iota
	Loading
	Loaded
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	}
	return "unloaded"
}

// Completion pairs a matched name with its metadata.
type Completion struct {
	Name   string
	Record tags.Record
	// Known is false when the name is indexed but missing from the mapping.
	Known bool
	// Fuzzy marks candidates added by the fuzzy fallback.
	Fuzzy bool
}

// Options configures a Provider. The zero value is usable.
type Options struct {
	// CacheRoot is where index artifacts live; empty means <tmp>/tagserve.
	CacheRoot   string
	Compression index.Compression
	// Delimiter of the vocabulary file; 0 means ','.
	Delimiter rune
	Logger    *log.Logger
	// OnError receives failures of TriggerLoad. Nil logs them instead.
	OnError    func(title, message string)
	Registerer prometheus.Registerer
	// RankByPopularity orders candidates by descending popularity, exact match first.
	RankByPopularity bool
	// FuzzyFallback tops up short result lists with fuzzy matches over all names.
	FuzzyFallback bool
}

// snapshot is published as a unit so queries never mix a searcher with
// another load's mapping.
type snapshot struct {
	searcher *index.Searcher
	tags     map[string]tags.Record
	source   string
	hash     string
	loadedAt time.Time
}

// Stats describes the active snapshot.
type Stats struct {
	State    State
	Tags     int
	Indexed  int
	Source   string
	Hash     string
	LoadedAt time.Time
}

// Provider serves completions from the most recent successful load.
type Provider struct {
	opts    Options
	cache   *cache.Cache
	log     *log.Logger
	metrics *Metrics

	slot    *semaphore.Weighted
	current atomic.Pointer[snapshot]
	pending atomic.Int32
	wg      sync.WaitGroup

	open func(path string) (io.ReadCloser, error)
}

func openSource(path string) (io.ReadCloser, error) {
	return os.Open(path)
}

// New creates an unloaded Provider.
func New(opts Options) *Provider {
	l := logger.OrDefault(opts.Logger, "tags")
	return &Provider{
		opts:    opts,
		cache:   cache.New(opts.CacheRoot, l.WithPrefix("cache")),
		log:     l,
		metrics: NewMetrics(opts.Registerer),
		slot:    semaphore.NewWeighted(1),
		open:    openSource,
	}
}

// Metrics exposes the provider's collectors.
func (p *Provider) Metrics() *Metrics {
	return p.metrics
}

// TriggerLoad loads path in the background. Failures are reported through
// OnError and never reach the caller.
func (p *Provider) TriggerLoad(path string, forceRebuild bool) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.AwaitLoad(context.Background(), path, forceRebuild); err != nil {
			p.notify(path, err)
		}
	}()
}

// AwaitLoad loads path and blocks until the new snapshot is active. A load
// already in progress is waited for first; ctx only bounds that wait.
// On failure the previous snapshot, if any, stays active.
func (p *Provider) AwaitLoad(ctx context.Context, path string, forceRebuild bool) (err error) {
	p.pending.Add(1)
	defer p.pending.Add(-1)

	if err := p.slot.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("wait for load slot: %w", err)
	}
	defer p.slot.Release(1)

	l := p.log.With("load", uuid.NewString()[:8], "source", filepath.Base(path))
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("load panicked: %v", r)
		}
		if err != nil {
			p.metrics.Loads.WithLabelValues("error").Inc()
			l.Error("load failed", "err", err)
		}
	}()

	start := time.Now()
	var snap *snapshot
	for attempt := 1; ; attempt++ {
		snap, err = p.load(l, path, forceRebuild)
		if err == nil {
			break
		}
		if !errors.Is(err, ErrSourceChanged) || attempt == loadAttempts {
			return err
		}
		l.Warn("source changed during load, retrying", "attempt", attempt)
	}
	p.current.Store(snap)

	p.metrics.Loads.WithLabelValues("ok").Inc()
	p.metrics.TagsLoaded.Set(float64(len(snap.tags)))
	l.Info("tags loaded", "tags", len(snap.tags), "indexed", snap.searcher.Len(), "took", time.Since(start))
	return nil
}

// Wait blocks until every TriggerLoad issued so far has finished.
func (p *Provider) Wait() {
	p.wg.Wait()
}

func (p *Provider) notify(path string, err error) {
	msg := fmt.Sprintf("%s: %v", filepath.Base(path), err)
	if p.opts.OnError == nil {
		p.log.Error(LoadErrorTitle, "err", msg)
		return
	}
	p.opts.OnError(LoadErrorTitle, msg)
}

// load parses the source exactly once. On a cache hit the parse only fills the
// mapping; otherwise names are fed to a Builder at the same time. The parsed
// bytes are hashed as they are read and must match the entry's hash before
// any artifact is reused or committed.
func (p *Provider) load(l *log.Logger, path string, forceRebuild bool) (*snapshot, error) {
	entry, err := p.cache.Resolve(path, forceRebuild)
	if err != nil {
		return nil, err
	}

	f, err := p.open(path)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	defer f.Close()
	h := sha256.New()

	var b *index.Builder
	if entry.NeedsBuild {
		b = p.newBuilder()
	}

	parser := tags.NewParser(io.TeeReader(f, h), tags.WithDelimiter(p.opts.Delimiter))
	mapping := make(map[string]tags.Record)
	for rec := range parser.All() {
		mapping[rec.Name] = rec
		if b != nil {
			b.Add(rec.Name)
		}
	}
	if err := parser.Err(); err != nil {
		return nil, fmt.Errorf("parse source: %w", err)
	}
	if _, err := io.Copy(io.Discard, io.TeeReader(f, h)); err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}
	if got := hex.EncodeToString(h.Sum(nil)); got != entry.Hash {
		l.Debug("source hash mismatch", "resolved", entry.Hash[:12], "parsed", got[:12])
		return nil, ErrSourceChanged
	}
	if n := parser.Skipped(); n > 0 {
		l.Debug("skipped malformed rows", "rows", n)
	}

	var s *index.Searcher
	if b == nil {
		s, err = index.Open(entry.HeaderPath, entry.IndexPath)
		switch {
		case err == nil:
			p.metrics.CacheHits.Inc()
			l.Debug("reusing cached index", "dir", entry.Dir)
		case errors.Is(err, index.ErrCorrupt):
			l.Warn("cached index unusable, rebuilding", "err", err)
			if rmErr := p.cache.Invalidate(entry); rmErr != nil {
				l.Warn("could not remove stale artifacts", "err", rmErr)
			}
			b = p.newBuilder()
			for name := range mapping {
				b.Add(name)
			}
		default:
			return nil, err
		}
	}

	if b != nil {
		if err := p.build(l, entry, b); err != nil {
			return nil, err
		}
		if s, err = index.Open(entry.HeaderPath, entry.IndexPath); err != nil {
			return nil, fmt.Errorf("open fresh index: %w", err)
		}
	}

	return &snapshot{
		searcher: s,
		tags:     mapping,
		source:   path,
		hash:     entry.Hash,
		loadedAt: time.Now(),
	}, nil
}

func (p *Provider) newBuilder() *index.Builder {
	return index.NewBuilder(index.WithCompression(p.opts.Compression))
}

func (p *Provider) build(l *log.Logger, entry cache.Entry, b *index.Builder) error {
	start := time.Now()
	var st index.Stats
	err := p.cache.Commit(entry, func(header, body io.Writer) error {
		var err error
		st, err = b.Build(header, body)
		return err
	})
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}
	p.metrics.Builds.Inc()
	l.Info("index built",
		"keys", st.Keys,
		"nodes", st.Nodes,
		"bytes", utils.FormatWithCommas(st.DiskBytes),
		"compression", st.Compressed,
		"took", time.Since(start))
	return nil
}

// GetCompletions returns candidates for term. It never fails: before the first
// successful load, or for a blank term, the result is empty.
func (p *Provider) GetCompletions(term string, maxResults int, suggestOnPrefix bool) []Completion {
	start := time.Now()
	defer func() { p.metrics.QueryDuration.Observe(time.Since(start).Seconds()) }()

	snap := p.current.Load()
	if snap == nil || utils.IsBlank(term) {
		return []Completion{}
	}

	limit := maxResults
	if p.opts.RankByPopularity {
		limit = 0
	}
	res, err := snap.searcher.Search(term, limit, suggestOnPrefix)
	if err != nil {
		p.log.Error("search failed", "term", term, "err", err)
		return []Completion{}
	}

	out := make([]Completion, 0, len(res.Keys))
	for _, name := range res.Keys {
		out = append(out, snap.completion(name, false))
	}
	if p.opts.RankByPopularity {
		rankByPopularity(out, res.Exact)
	}
	if maxResults > 0 && len(out) > maxResults {
		out = out[:maxResults]
	}
	if p.opts.FuzzyFallback && (maxResults <= 0 || len(out) < maxResults) {
		out = snap.fuzzyFill(out, term, maxResults)
	}
	return out
}

func (s *snapshot) completion(name string, fuzzy bool) Completion {
	rec, ok := s.tags[name]
	if !ok {
		rec = tags.Record{Name: name, Category: tags.Unknown, Code: tags.NoCode}
	}
	return Completion{Name: name, Record: rec, Known: ok, Fuzzy: fuzzy}
}

// rankByPopularity sorts by descending popularity, keeping the exact match
// (always first in a search result) in front and ties in index order.
func rankByPopularity(cs []Completion, exact bool) {
	rest := cs
	if exact && len(cs) > 0 {
		rest = cs[1:]
	}
	sort.SliceStable(rest, func(i, j int) bool {
		return rest[i].Record.Popularity > rest[j].Record.Popularity
	})
}

// IsLoaded reports whether a snapshot is active.
func (p *Provider) IsLoaded() bool {
	return p.current.Load() != nil
}

// State reports Loading while any load is queued or running, else Loaded or Unloaded.
func (p *Provider) State() State {
	if p.pending.Load() > 0 {
		return Loading
	}
	if p.IsLoaded() {
		return Loaded
	}
	return Unloaded
}

// Source returns the path of the active snapshot.
func (p *Provider) Source() string {
	if snap := p.current.Load(); snap != nil {
		return snap.source
	}
	return ""
}

// Stats describes the active snapshot.
func (p *Provider) Stats() Stats {
	st := Stats{State: p.State()}
	if snap := p.current.Load(); snap != nil {
		st.Tags = len(snap.tags)
		st.Indexed = snap.searcher.Len()
		st.Source = snap.source
		st.Hash = snap.hash
		st.LoadedAt = snap.loadedAt
	}
	return st
}
