package index

import (
	"hash/crc32"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func itoa(i int) string { return strconv.Itoa(i) }

func crc(b []byte) uint32 { return crc32.ChecksumIEEE(b) }

func flip(b []byte, i int) []byte {
	out := append([]byte(nil), b...)
	out[i] ^= 0xff
	return out
}

func mutateHeader(t *testing.T, raw []byte, fn func(*Header)) []byte {
	t.Helper()
	var h Header
	require.NoError(t, msgpack.Unmarshal(raw, &h))
	fn(&h)
	out, err := msgpack.Marshal(&h)
	require.NoError(t, err)
	return out
}
