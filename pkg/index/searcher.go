package index

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"sort"

	"github.com/vmihailenco/msgpack/v5"
)

// Status classifies a search.
type Status int

const (
	// NotFound means some character of the term had no matching edge.
	NotFound Status = iota
	// Found means the whole term was consumed, either onto a stored name or a prefix of one.
	Found
)

func (s Status) String() string {
	if s == Found {
		return "found"
	}
	return "not_found"
}

// Result is the outcome of a Search.
type Result struct {
	Status Status
	// Exact is set when the term itself is a stored name; it is then Keys[0].
	Exact bool
	Keys  []string
}

// Searcher answers prefix queries over a loaded index. Once loaded it is
// read-only and safe for concurrent use.
type Searcher struct {
	header  Header
	nodes   []byte
	edges   []byte
	offsets []byte
	keys    []byte
	loaded  bool
}

// Open loads a Searcher from artifact paths.
func Open(headerPath, indexPath string) (*Searcher, error) {
	s := &Searcher{}
	if err := s.Load(headerPath, indexPath); err != nil {
		return nil, err
	}
	return s, nil
}

// Load reads both artifacts. Missing files are reported as ErrCorrupt so
// callers can treat them like any other unusable cache entry. Load must not
// run concurrently with Search on the same Searcher.
func (s *Searcher) Load(headerPath, indexPath string) error {
	hf, err := os.Open(headerPath)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	defer hf.Close()

	bf, err := os.Open(indexPath)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	defer bf.Close()

	return s.LoadFrom(hf, bf)
}

// LoadFrom reads the header and body from streams.
func (s *Searcher) LoadFrom(header, body io.Reader) error {
	var h Header
	if err := msgpack.NewDecoder(header).Decode(&h); err != nil {
		return fmt.Errorf("%w: decode header: %v", ErrCorrupt, err)
	}
	if err := h.validate(); err != nil {
		return err
	}

	raw, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read index body: %w", err)
	}
	data, err := decompressBody(raw, h.Compression, h.BodySize)
	if err != nil {
		return err
	}
	if uint64(len(data)) != h.BodySize {
		return fmt.Errorf("%w: body has %d bytes, header says %d", ErrCorrupt, len(data), h.BodySize)
	}
	if crc32.ChecksumIEEE(data) != h.Checksum {
		return fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}

	next := &Searcher{header: h, loaded: true}
	pos := uint64(0)
	take := func(n uint64) []byte {
		b := data[pos : pos+n]
		pos += n
		return b
	}
	next.nodes = take(uint64(h.Nodes) * nodeSize)
	next.edges = take(uint64(h.Edges) * edgeSize)
	next.offsets = take((uint64(h.Keys) + 1) * offsetSize)
	next.keys = take(uint64(h.KeyBytes))

	if err := next.verify(); err != nil {
		return err
	}
	*s = *next
	return nil
}

// verify checks every reference in the tables against the header counts.
func (s *Searcher) verify() error {
	h := s.header
	for i := uint32(0); i < h.Nodes; i++ {
		n := s.node(i)
		if uint64(n.firstEdge)+uint64(n.edgeCount) > uint64(h.Edges) {
			return fmt.Errorf("%w: node %d edges out of range", ErrCorrupt, i)
		}
		if n.keyLo > n.keyHi || n.keyHi > h.Keys {
			return fmt.Errorf("%w: node %d key range out of bounds", ErrCorrupt, i)
		}
		if n.flags&flagTerminal != 0 && n.keyLo == n.keyHi {
			return fmt.Errorf("%w: terminal node %d owns no key", ErrCorrupt, i)
		}
	}
	for i := uint32(0); i < h.Edges; i++ {
		_, target := s.edge(i)
		if target == 0 || target >= h.Nodes {
			return fmt.Errorf("%w: edge %d targets node %d", ErrCorrupt, i, target)
		}
	}
	prev := uint32(0)
	for i := uint32(0); i <= h.Keys; i++ {
		off := s.offset(i)
		if off < prev {
			return fmt.Errorf("%w: key offsets not monotonic at %d", ErrCorrupt, i)
		}
		prev = off
	}
	if s.offset(0) != 0 || prev != h.KeyBytes {
		return fmt.Errorf("%w: key offsets do not cover key bytes", ErrCorrupt)
	}
	return nil
}

// Search walks term one character at a time from the root. A term landing on a
// stored name returns that name first and, with suggestOnPrefix, the names
// extending it. A term landing between names returns the names extending it.
// Names come out in byte order. maxResults <= 0 means no cap.
func (s *Searcher) Search(term string, maxResults int, suggestOnPrefix bool) (Result, error) {
	if s == nil || !s.loaded {
		return Result{}, ErrNotLoaded
	}

	cur := uint32(0)
	for _, r := range term {
		next, ok := s.child(cur, r)
		if !ok {
			return Result{Status: NotFound}, nil
		}
		cur = next
	}

	n := s.node(cur)
	exact := n.flags&flagTerminal != 0
	lo, hi := n.keyLo, n.keyHi
	if exact && !suggestOnPrefix {
		hi = lo + 1
	}
	if maxResults > 0 && hi-lo > uint32(maxResults) {
		hi = lo + uint32(maxResults)
	}

	keys := make([]string, 0, hi-lo)
	for i := lo; i < hi; i++ {
		keys = append(keys, s.Key(int(i)))
	}
	return Result{Status: Found, Exact: exact, Keys: keys}, nil
}

// Len returns the number of stored names, 0 before Load.
func (s *Searcher) Len() int {
	if s == nil || !s.loaded {
		return 0
	}
	return int(s.header.Keys)
}

// Key returns the i-th stored name in byte order.
func (s *Searcher) Key(i int) string {
	return string(s.keys[s.offset(uint32(i)):s.offset(uint32(i)+1)])
}

// Header returns the header the index was loaded with.
func (s *Searcher) Header() Header {
	return s.header
}

func (s *Searcher) child(node uint32, r rune) (uint32, bool) {
	n := s.node(node)
	i := sort.Search(int(n.edgeCount), func(i int) bool {
		label, _ := s.edge(n.firstEdge + uint32(i))
		return label >= r
	})
	if i == int(n.edgeCount) {
		return 0, false
	}
	label, target := s.edge(n.firstEdge + uint32(i))
	if label != r {
		return 0, false
	}
	return target, true
}

func (s *Searcher) node(i uint32) flatNode {
	b := s.nodes[i*nodeSize : (i+1)*nodeSize]
	return flatNode{
		firstEdge: binary.LittleEndian.Uint32(b[0:]),
		edgeCount: binary.LittleEndian.Uint32(b[4:]),
		keyLo:     binary.LittleEndian.Uint32(b[8:]),
		keyHi:     binary.LittleEndian.Uint32(b[12:]),
		flags:     binary.LittleEndian.Uint32(b[16:]),
	}
}

func (s *Searcher) edge(i uint32) (rune, uint32) {
	b := s.edges[i*edgeSize : (i+1)*edgeSize]
	return rune(binary.LittleEndian.Uint32(b[0:])), binary.LittleEndian.Uint32(b[4:])
}

func (s *Searcher) offset(i uint32) uint32 {
	return binary.LittleEndian.Uint32(s.offsets[i*offsetSize:])
}
