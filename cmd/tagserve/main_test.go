package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bastiangx/tagserve/pkg/config"
)

// setup writes a vocabulary and a config whose cache lives in a temp dir.
func setup(t *testing.T) (cfgPath, src string) {
	t.Helper()
	dir := t.TempDir()
	src = filepath.Join(dir, "tags.csv")
	require.NoError(t, os.WriteFile(src, []byte("cat,0,120\ndog,0,80\n\ncatfish,1,5\n"), 0o644))
	cfgPath = filepath.Join(dir, "config.toml")
	cfg := fmt.Sprintf("[index]\ncache_root = %q\ncompression = \"lz4\"\n", filepath.Join(dir, "cache"))
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))
	return cfgPath, src
}

func execute(t *testing.T, in string, args ...string) (string, error) {
	t.Helper()
	queryLimit, queryExact, queryInteractive = 0, false, false
	buildSave, debugMode = false, false

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(in))
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return buf.String(), err
}

func TestQueryCmd(t *testing.T) {
	cfg, src := setup(t)

	out, err := execute(t, "", "--config", cfg, "query", src, "cat")
	require.NoError(t, err)
	assert.Contains(t, out, "Found 2 suggestions for 'cat'")
	assert.Contains(t, out, "catfish")
}

func TestQueryCmdExact(t *testing.T) {
	cfg, src := setup(t)

	out, err := execute(t, "", "--config", cfg, "query", "--exact", src, "cat")
	require.NoError(t, err)
	assert.Contains(t, out, "Found 1 suggestions for 'cat'")
}

func TestQueryCmdInteractive(t *testing.T) {
	cfg, src := setup(t)

	out, err := execute(t, "do\nfish\n", "--config", cfg, "query", "-i", src)
	require.NoError(t, err)
	assert.Contains(t, out, "Found 1 suggestions for 'do'")
	assert.Contains(t, out, "No suggestions found for 'fish'")
}

func TestQueryCmdNeedsTerm(t *testing.T) {
	cfg, src := setup(t)

	_, err := execute(t, "", "--config", cfg, "query", src)
	assert.Error(t, err)
}

func TestBuildCmd(t *testing.T) {
	cfg, src := setup(t)

	out, err := execute(t, "", "--config", cfg, "build", src)
	require.NoError(t, err)
	assert.Contains(t, out, "tags:    3")
	assert.Contains(t, out, "indexed: 3")
}

func TestBuildCmdSavesSource(t *testing.T) {
	cfg, src := setup(t)

	_, err := execute(t, "", "--config", cfg, "build", "--save", src)
	require.NoError(t, err)

	saved, err := config.LoadConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, src, saved.Tags.SourcePath)
	assert.Equal(t, "lz4", saved.Index.Compression)

	// later runs pick the saved source up without an argument
	out, err := execute(t, "", "--config", cfg, "build")
	require.NoError(t, err)
	assert.Contains(t, out, "source:  "+src)
}

func TestBuildCmdWithoutSaveLeavesConfig(t *testing.T) {
	cfg, src := setup(t)
	before, err := os.ReadFile(cfg)
	require.NoError(t, err)

	_, err = execute(t, "", "--config", cfg, "build", src)
	require.NoError(t, err)

	after, err := os.ReadFile(cfg)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestNewLoggerFollowsDebugMode(t *testing.T) {
	defer func() { debugMode = false }()

	debugMode = true
	assert.Equal(t, log.DebugLevel, newLogger("tags").GetLevel())

	debugMode = false
	log.SetLevel(log.WarnLevel)
	assert.Equal(t, log.WarnLevel, newLogger("tags").GetLevel())
}

func TestBuildCmdMissingSource(t *testing.T) {
	cfg, _ := setup(t)

	_, err := execute(t, "", "--config", cfg, "build", filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}

func TestServeCmdFlags(t *testing.T) {
	f := serveCmd.Flags().Lookup("metrics")
	require.NotNil(t, f)
	assert.Equal(t, "", f.DefValue)
	assert.NotNil(t, serveCmd.Flags().Lookup("rebuild"))
}

func TestConfigCmdPrintsActiveConfig(t *testing.T) {
	cfg, _ := setup(t)
	configReset = false

	out, err := execute(t, "", "--config", cfg, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "[index]")
	assert.Contains(t, out, `compression = "lz4"`)
	assert.Contains(t, out, "max_results = 20")
}
