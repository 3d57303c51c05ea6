// Package index builds and reads the two-artifact prefix index used for tag completion.
//
// The header artifact is a msgpack map describing the layout of the body artifact.
// The body holds, little-endian and optionally compressed:
//
//	node table   nodes x [first_edge u32][edge_count u32][key_lo u32][key_hi u32][flags u32]
//	edge table   edges x [label u32][target u32]
//	key offsets  (keys+1) x u32
//	key bytes    key_bytes of concatenated UTF-8 names
//
// Node 0 is the root. Nodes are laid out in DFS preorder with children sorted by label,
// so the keys below any node form the contiguous id range [key_lo, key_hi).
package index

import (
	"errors"
	"fmt"
	"strings"
)

const (
	headerMagic   = "TAGIDX"
	formatVersion = 1

	nodeSize   = 20
	edgeSize   = 8
	offsetSize = 4

	flagTerminal = 1 << 0

	maxBodySize = 1 << 31
)

var (
	// ErrNotLoaded is returned by Search on a Searcher without a loaded index.
	ErrNotLoaded = errors.New("index not loaded")
	// ErrCorrupt marks artifacts that are missing, truncated or inconsistent.
	ErrCorrupt = errors.New("index artifacts corrupt")
)

// Compression selects the codec applied to the body artifact.
type Compression uint8

const (
	CompressionNone Compression = 0
	CompressionLZ4  Compression = 1
	CompressionZstd Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	}
	return fmt.Sprintf("compression(%d)", uint8(c))
}

// ParseCompression accepts "none", "lz4" or "zstd". Empty means none.
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	}
	return CompressionNone, fmt.Errorf("unknown compression %q", s)
}

// Header is the content of the header artifact.
type Header struct {
	Magic       string      `msgpack:"magic"`
	Version     int         `msgpack:"version"`
	Compression Compression `msgpack:"compression"`
	Nodes       uint32      `msgpack:"nodes"`
	Edges       uint32      `msgpack:"edges"`
	Keys        uint32      `msgpack:"keys"`
	KeyBytes    uint32      `msgpack:"key_bytes"`
	BodySize    uint64      `msgpack:"body_size"`
	Checksum    uint32      `msgpack:"crc"`
	BuiltAt     int64       `msgpack:"built_at"`
}

// bodySize is the uncompressed body length implied by the counts.
func (h Header) bodySize() uint64 {
	return uint64(h.Nodes)*nodeSize +
		uint64(h.Edges)*edgeSize +
		(uint64(h.Keys)+1)*offsetSize +
		uint64(h.KeyBytes)
}

func (h Header) validate() error {
	if h.Magic != headerMagic {
		return fmt.Errorf("%w: bad magic %q", ErrCorrupt, h.Magic)
	}
	if h.Version != formatVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrCorrupt, h.Version)
	}
	if h.Compression > CompressionZstd {
		return fmt.Errorf("%w: unknown compression %d", ErrCorrupt, h.Compression)
	}
	if h.Nodes == 0 {
		return fmt.Errorf("%w: header declares no root node", ErrCorrupt)
	}
	if h.Edges != h.Nodes-1 {
		return fmt.Errorf("%w: %d nodes but %d edges", ErrCorrupt, h.Nodes, h.Edges)
	}
	if h.BodySize > maxBodySize {
		return fmt.Errorf("%w: body size %d exceeds limit", ErrCorrupt, h.BodySize)
	}
	if want := h.bodySize(); h.BodySize != want {
		return fmt.Errorf("%w: body size %d, layout needs %d", ErrCorrupt, h.BodySize, want)
	}
	return nil
}

// Stats summarizes a build.
type Stats struct {
	Keys       int
	Nodes      int
	BodyBytes  int
	DiskBytes  int
	Compressed Compression
}
