package index

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/tchap/go-patricia/v2/patricia"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/bastiangx/tagserve/internal/utils"
)

// Builder accumulates names and serializes them into header and body artifacts.
// It is not safe for concurrent use.
type Builder struct {
	names       *patricia.Trie
	count       int
	compression Compression
	now         func() time.Time
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithCompression sets the body codec. Defaults to CompressionNone.
func WithCompression(c Compression) BuilderOption {
	return func(b *Builder) { b.compression = c }
}

// NewBuilder creates an empty Builder.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{
		names: patricia.NewTrie(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Add records name for the next Build. Blank names, invalid UTF-8 and
// duplicates are ignored; the return value reports whether name was new.
func (b *Builder) Add(name string) bool {
	if utils.IsBlank(name) || !utf8.ValidString(name) {
		return false
	}
	if !b.names.Insert(patricia.Prefix(name), true) {
		return false
	}
	b.count++
	return true
}

// Len returns the number of distinct names added.
func (b *Builder) Len() int {
	return b.count
}

type buildNode struct {
	label    rune
	terminal bool
	children []*buildNode
}

type edge struct {
	label  rune
	target uint32
}

type flatNode struct {
	firstEdge uint32
	edgeCount uint32
	keyLo     uint32
	keyHi     uint32
	flags     uint32
}

type layout struct {
	nodes   []flatNode
	edges   []edge
	nextKey uint32
}

// Build lays out the accumulated names and writes the body, then the header.
// A failed Build leaves both writers in an undefined state.
func (b *Builder) Build(header, body io.Writer) (Stats, error) {
	names := make([]string, 0, b.count)
	err := b.names.Visit(func(p patricia.Prefix, _ patricia.Item) error {
		names = append(names, string(p))
		return nil
	})
	if err != nil {
		return Stats{}, fmt.Errorf("collect names: %w", err)
	}
	// byte order equals code point order for valid UTF-8, which keeps
	// child labels ascending while the tree is grown below
	sort.Strings(names)

	root := &buildNode{}
	for _, name := range names {
		insertSorted(root, name)
	}

	l := &layout{}
	l.emit(root)
	if int(l.nextKey) != len(names) {
		return Stats{}, fmt.Errorf("layout assigned %d keys for %d names", l.nextKey, len(names))
	}

	raw := encodeBody(l, names)
	h := Header{
		Magic:    headerMagic,
		Version:  formatVersion,
		Nodes:    uint32(len(l.nodes)),
		Edges:    uint32(len(l.edges)),
		Keys:     uint32(len(names)),
		BodySize: uint64(len(raw)),
		Checksum: crc32.ChecksumIEEE(raw),
		BuiltAt:  b.now().Unix(),
	}
	for _, n := range names {
		h.KeyBytes += uint32(len(n))
	}

	disk, used, err := compressBody(raw, b.compression)
	if err != nil {
		return Stats{}, err
	}
	h.Compression = used

	if _, err := body.Write(disk); err != nil {
		return Stats{}, fmt.Errorf("write index body: %w", err)
	}
	if err := msgpack.NewEncoder(header).Encode(&h); err != nil {
		return Stats{}, fmt.Errorf("write index header: %w", err)
	}

	return Stats{
		Keys:       len(names),
		Nodes:      len(l.nodes),
		BodyBytes:  len(raw),
		DiskBytes:  len(disk),
		Compressed: used,
	}, nil
}

// insertSorted adds name below root. Names must arrive in ascending order,
// so a matching child can only ever be the last one.
func insertSorted(root *buildNode, name string) {
	n := root
	for _, r := range name {
		if k := len(n.children); k > 0 && n.children[k-1].label == r {
			n = n.children[k-1]
			continue
		}
		child := &buildNode{label: r}
		n.children = append(n.children, child)
		n = child
	}
	n.terminal = true
}

// emit writes n and its subtree in preorder and returns n's node id.
func (l *layout) emit(n *buildNode) uint32 {
	id := uint32(len(l.nodes))
	l.nodes = append(l.nodes, flatNode{})

	keyLo := l.nextKey
	var flags uint32
	if n.terminal {
		flags |= flagTerminal
		l.nextKey++
	}

	// a node's edges are contiguous, so reserve them before descending
	first := uint32(len(l.edges))
	for _, c := range n.children {
		l.edges = append(l.edges, edge{label: c.label})
	}
	for i, c := range n.children {
		l.edges[first+uint32(i)].target = l.emit(c)
	}

	l.nodes[id] = flatNode{
		firstEdge: first,
		edgeCount: uint32(len(n.children)),
		keyLo:     keyLo,
		keyHi:     l.nextKey,
		flags:     flags,
	}
	return id
}

func encodeBody(l *layout, names []string) []byte {
	size := len(l.nodes)*nodeSize + len(l.edges)*edgeSize + (len(names)+1)*offsetSize
	for _, n := range names {
		size += len(n)
	}
	buf := make([]byte, 0, size)

	for _, n := range l.nodes {
		buf = binary.LittleEndian.AppendUint32(buf, n.firstEdge)
		buf = binary.LittleEndian.AppendUint32(buf, n.edgeCount)
		buf = binary.LittleEndian.AppendUint32(buf, n.keyLo)
		buf = binary.LittleEndian.AppendUint32(buf, n.keyHi)
		buf = binary.LittleEndian.AppendUint32(buf, n.flags)
	}
	for _, e := range l.edges {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(e.label))
		buf = binary.LittleEndian.AppendUint32(buf, e.target)
	}
	var off uint32
	buf = binary.LittleEndian.AppendUint32(buf, off)
	for _, n := range names {
		off += uint32(len(n))
		buf = binary.LittleEndian.AppendUint32(buf, off)
	}
	for _, n := range names {
		buf = append(buf, n...)
	}
	return buf
}
