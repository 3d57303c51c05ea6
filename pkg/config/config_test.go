package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
[tags]
source_path = "/data/tags.csv"
delimiter = "\t"
watch = true

[index]
compression = "lz4"

[search]
max_results = 5
fuzzy_fallback = true
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/data/tags.csv", cfg.Tags.SourcePath)
	assert.Equal(t, '\t', cfg.Tags.DelimiterRune())
	assert.True(t, cfg.Tags.Watch)
	assert.Equal(t, 300*time.Millisecond, cfg.Tags.WatchDebounce())
	assert.Equal(t, "lz4", cfg.Index.Compression)
	assert.Equal(t, 5, cfg.Search.MaxResults)
	assert.True(t, cfg.Search.FuzzyFallback)
	assert.True(t, cfg.Search.SuggestOnPrefix, "unset keys keep defaults")
}

func TestLoadConfigPartialRecovery(t *testing.T) {
	path := writeConfig(t, `
[tags]
source_path = "tags.csv"
watch_debounce_ms = 50

[search]
max_results = "lots"
rank_by_popularity = true
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "tags.csv", cfg.Tags.SourcePath)
	assert.Equal(t, 50, cfg.Tags.WatchDebounceMs)
	assert.Equal(t, DefaultConfig().Search.MaxResults, cfg.Search.MaxResults)
	assert.True(t, cfg.Search.RankByPopularity)
}

func TestLoadConfigGarbage(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "this is [[ not toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestInitConfigCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg, err := InitConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.FileExists(t, path)

	again, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoadConfigWithPriorityCustomPath(t *testing.T) {
	path := writeConfig(t, "[search]\nmax_results = 7\n")

	cfg, used, err := LoadConfigWithPriority(path)
	require.NoError(t, err)
	assert.Equal(t, path, used)
	assert.Equal(t, 7, cfg.Search.MaxResults)
}

func TestSetSource(t *testing.T) {
	path := writeConfig(t, "")
	cfg := DefaultConfig()
	src := filepath.Join(t.TempDir(), "tags.csv")

	require.NoError(t, cfg.SetSource(path, src))
	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, src, loaded.Tags.SourcePath)
}

func TestDelimiterRuneDefault(t *testing.T) {
	assert.Equal(t, rune(0), TagsConfig{}.DelimiterRune())
	assert.Equal(t, ';', TagsConfig{Delimiter: ";"}.DelimiterRune())
}
