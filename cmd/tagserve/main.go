// Copyright 2025 The TagServe Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package main implements the tag completion server and CLI [DBG] application.

TagServe answers prefix completions over a vocabulary of tags read from a
delimited text file (name, category code, popularity, aliases, ...). The file is
indexed once per distinct content: artifacts live under a directory named by
the SHA-256 of the file, so restarts and renames reuse them.

# Usage

Serve completions over msgpack IPC on stdin/stdout:

	tagserve serve /path/to/tags.csv

Force a rebuild of the index and print its stats:

	tagserve build /path/to/tags.csv

One-shot and interactive queries:

	tagserve query tags.csv cat
	tagserve query -i tags.csv

# Configuration

The config file is created with defaults if it doesn't exist:

	[tags]
	source_path = ""
	delimiter = ","
	rebuild_on_start = false
	watch = false
	watch_debounce_ms = 300

	[index]
	cache_root = ""
	compression = "zstd"

	[search]
	max_results = 20
	suggest_on_prefix = true
	rank_by_popularity = false
	fuzzy_fallback = false
	max_term_length = 128

With watch enabled, serve reloads the source when it changes on disk.

See pkg/server for the IPC protocol.
*/
package main

import (
	"os"
)

const (
	Version = "0.1.0-beta"
	AppName = "tagserve"
	gh      = "https://github.com/bastiangx/tagserve"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
