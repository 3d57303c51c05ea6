package index

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func build(t *testing.T, names []string, opts ...BuilderOption) (header, body []byte) {
	t.Helper()
	b := NewBuilder(opts...)
	for _, n := range names {
		b.Add(n)
	}
	var hb, bb bytes.Buffer
	_, err := b.Build(&hb, &bb)
	require.NoError(t, err)
	return hb.Bytes(), bb.Bytes()
}

func load(t *testing.T, names []string, opts ...BuilderOption) *Searcher {
	t.Helper()
	h, b := build(t, names, opts...)
	s := &Searcher{}
	require.NoError(t, s.LoadFrom(bytes.NewReader(h), bytes.NewReader(b)))
	return s
}

var vocabulary = []string{
	"cat", "catfish", "dog", "long_hair", "long_sleeves", "looking_at_viewer",
	"1girl", "1boy", "solo", "smile", "café", "猫耳", "猫", "c", "ca",
	":d", "^_^", "holding_cat", "cat_ears", "cat_tail",
}

func TestScenario(t *testing.T) {
	s := load(t, []string{"cat", "dog", "catfish"})

	res, err := s.Search("cat", 10, true)
	require.NoError(t, err)
	assert.Equal(t, Found, res.Status)
	assert.True(t, res.Exact)
	assert.Equal(t, []string{"cat", "catfish"}, res.Keys)

	res, err = s.Search("do", 10, true)
	require.NoError(t, err)
	assert.Equal(t, Found, res.Status)
	assert.False(t, res.Exact)
	assert.Equal(t, []string{"dog"}, res.Keys)

	res, err = s.Search("fish", 10, true)
	require.NoError(t, err)
	assert.Equal(t, NotFound, res.Status)
	assert.Empty(t, res.Keys)
}

func TestRoundTrip(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZstd} {
		t.Run(c.String(), func(t *testing.T) {
			s := load(t, vocabulary, WithCompression(c))
			assert.Equal(t, len(vocabulary), s.Len())
			for _, name := range vocabulary {
				res, err := s.Search(name, 1, false)
				require.NoError(t, err)
				assert.Equal(t, Found, res.Status, name)
				assert.True(t, res.Exact, name)
				assert.Equal(t, []string{name}, res.Keys, name)
			}
		})
	}
}

func TestPrefixMonotonicity(t *testing.T) {
	s := load(t, vocabulary)
	for _, name := range vocabulary {
		runes := []rune(name)
		for i := 1; i < len(runes); i++ {
			prefix := string(runes[:i])
			res, err := s.Search(prefix, 0, true)
			require.NoError(t, err)
			assert.Equal(t, Found, res.Status, prefix)
			assert.Contains(t, res.Keys, name, "prefix %q", prefix)
		}
	}
}

func TestSearch(t *testing.T) {
	s := load(t, vocabulary)

	t.Run("not found for unknown first character", func(t *testing.T) {
		res, err := s.Search("zzz", 10, true)
		require.NoError(t, err)
		assert.Equal(t, NotFound, res.Status)
		assert.Empty(t, res.Keys)
	})

	t.Run("not found past a stored name", func(t *testing.T) {
		res, err := s.Search("dogs", 10, true)
		require.NoError(t, err)
		assert.Equal(t, NotFound, res.Status)
	})

	t.Run("exact without suggestions returns only the name", func(t *testing.T) {
		res, err := s.Search("cat", 10, false)
		require.NoError(t, err)
		assert.Equal(t, []string{"cat"}, res.Keys)
	})

	t.Run("exact with suggestions lists the subtree in order", func(t *testing.T) {
		res, err := s.Search("cat", 10, true)
		require.NoError(t, err)
		assert.Equal(t, []string{"cat", "cat_ears", "cat_tail", "catfish"}, res.Keys)
	})

	t.Run("prefix landing enumerates even without suggestions", func(t *testing.T) {
		res, err := s.Search("lo", 10, false)
		require.NoError(t, err)
		assert.Equal(t, Found, res.Status)
		assert.False(t, res.Exact)
		assert.Equal(t, []string{"long_hair", "long_sleeves", "looking_at_viewer"}, res.Keys)
	})

	t.Run("max results caps the subtree", func(t *testing.T) {
		res, err := s.Search("c", 3, true)
		require.NoError(t, err)
		assert.Equal(t, []string{"c", "ca", "café"}, res.Keys)
	})

	t.Run("multibyte characters walk one rune per edge", func(t *testing.T) {
		res, err := s.Search("猫", 10, true)
		require.NoError(t, err)
		assert.Equal(t, []string{"猫", "猫耳"}, res.Keys)

		res, err = s.Search("caf", 10, true)
		require.NoError(t, err)
		assert.Equal(t, []string{"café"}, res.Keys)
	})

	t.Run("empty term lists everything in byte order", func(t *testing.T) {
		res, err := s.Search("", 0, true)
		require.NoError(t, err)
		want := append([]string(nil), vocabulary...)
		sort.Strings(want)
		assert.Equal(t, want, res.Keys)
	})

	t.Run("results are deterministic", func(t *testing.T) {
		a, _ := s.Search("l", 0, true)
		b, _ := load(t, vocabulary).Search("l", 0, true)
		assert.Equal(t, a, b)
	})
}

func TestSearchBeforeLoad(t *testing.T) {
	var s Searcher
	_, err := s.Search("cat", 10, true)
	assert.ErrorIs(t, err, ErrNotLoaded)
	assert.Zero(t, s.Len())
}

func TestBuilder(t *testing.T) {
	t.Run("ignores blanks duplicates and invalid utf8", func(t *testing.T) {
		b := NewBuilder()
		assert.True(t, b.Add("cat"))
		assert.False(t, b.Add("cat"))
		assert.False(t, b.Add(""))
		assert.False(t, b.Add("  \t"))
		assert.False(t, b.Add("bad\xff"))
		assert.Equal(t, 1, b.Len())
	})

	t.Run("empty vocabulary builds a root only index", func(t *testing.T) {
		s := load(t, nil)
		assert.Zero(t, s.Len())
		res, err := s.Search("a", 10, true)
		require.NoError(t, err)
		assert.Equal(t, NotFound, res.Status)
	})

	t.Run("stats describe the layout", func(t *testing.T) {
		b := NewBuilder()
		b.Add("ab")
		b.Add("ac")
		var hb, bb bytes.Buffer
		st, err := b.Build(&hb, &bb)
		require.NoError(t, err)
		assert.Equal(t, 2, st.Keys)
		assert.Equal(t, 4, st.Nodes)
		assert.Equal(t, st.BodyBytes, st.DiskBytes)
		assert.Equal(t, CompressionNone, st.Compressed)
	})

	t.Run("large vocabulary compresses", func(t *testing.T) {
		var names []string
		for i := 0; i < 20000; i++ {
			names = append(names, "tag_"+strings.Repeat("x", i%7)+"_"+itoa(i))
		}
		s := load(t, names, WithCompression(CompressionZstd))
		assert.Equal(t, len(names), s.Len())
		assert.Equal(t, CompressionZstd, s.Header().Compression)
		res, err := s.Search("tag_xxx_10", 0, true)
		require.NoError(t, err)
		assert.Contains(t, res.Keys, "tag_xxx_10")
	})
}

func TestLoadRejectsCorruption(t *testing.T) {
	h, b := build(t, vocabulary)

	tests := []struct {
		name   string
		header []byte
		body   []byte
	}{
		{"empty header", nil, b},
		{"truncated body", h, b[:len(b)-3]},
		{"flipped body byte", h, flip(b, len(b)-1)},
		{"garbage header", []byte("not msgpack at all"), b},
		{"wrong magic", mutateHeader(t, h, func(x *Header) { x.Magic = "NOPE" }), b},
		{"unknown compression", mutateHeader(t, h, func(x *Header) { x.Compression = 9 }), b},
		{"node count beyond body", mutateHeader(t, h, func(x *Header) { x.Nodes++; x.Edges++ }), b},
		{"edges inconsistent with nodes", mutateHeader(t, h, func(x *Header) { x.Edges-- }), b},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s Searcher
			err := s.LoadFrom(bytes.NewReader(tt.header), bytes.NewReader(tt.body))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrCorrupt)
			_, err = s.Search("cat", 1, false)
			assert.ErrorIs(t, err, ErrNotLoaded)
		})
	}
}

func TestLoadDetectsBadEdgeTarget(t *testing.T) {
	h, b := build(t, []string{"ab"})
	var hdr Header
	require.NoError(t, msgpack.Unmarshal(h, &hdr))

	// point the first edge back at the root and fix up the checksum
	body := append([]byte(nil), b...)
	edgeStart := int(hdr.Nodes) * nodeSize
	copy(body[edgeStart+4:edgeStart+8], []byte{0, 0, 0, 0})
	h = mutateHeader(t, h, func(x *Header) { x.Checksum = crc(body) })

	var s Searcher
	err := s.LoadFrom(bytes.NewReader(h), bytes.NewReader(body))
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestOpenFromFiles(t *testing.T) {
	dir := t.TempDir()
	h, b := build(t, vocabulary)
	hp, ip := filepath.Join(dir, "header.bin"), filepath.Join(dir, "index.bin")
	require.NoError(t, os.WriteFile(hp, h, 0o644))
	require.NoError(t, os.WriteFile(ip, b, 0o644))

	s, err := Open(hp, ip)
	require.NoError(t, err)
	assert.Equal(t, len(vocabulary), s.Len())

	_, err = Open(hp, filepath.Join(dir, "missing.bin"))
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestParseCompression(t *testing.T) {
	for in, want := range map[string]Compression{"": CompressionNone, "none": CompressionNone, "LZ4": CompressionLZ4, " zstd ": CompressionZstd} {
		got, err := ParseCompression(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseCompression("gzip")
	assert.Error(t, err)
}
