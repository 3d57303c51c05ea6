/*
Package server implements msgpack IPC for tag completion.

Clients write msgpack maps to stdin and read one msgpack map per request from
stdout. Logs go to stderr. On start the server writes a status message:

	{"id": "", "status": "ready"}

# Completion

	{"id": "q1", "p": "cat", "l": 10, "s": true}

"l" defaults to the configured max_results and "s" (suggest on prefix) to
suggest_on_prefix. The response lists suggestions with the tag name, category
code as written in the source (-1 when absent), popularity and a 1-based rank, plus the count and time taken in
microseconds:

	{"id": "q1", "s": [{"w": "cat", "c": 0, "n": 120, "r": 1}], "c": 1, "t": 41}

Queries sent before the first load finishes get an empty suggestion list.

# Control

	{"id": "c1", "action": "reload"}
	{"id": "c2", "action": "rebuild", "path": "/data/tags.csv"}
	{"id": "c3", "action": "status"}

reload and rebuild start a background load of path (or the active source) and
answer "loading" right away; rebuild ignores cached artifacts. Failures of those
loads are reported on stderr. status reports the provider state and the active
snapshot.

# Errors

	{"id": "q1", "e": "missing prefix", "c": 400}
*/
package server

// CompletionRequest carries a query. Action is empty for completions.
type CompletionRequest struct {
	ID      string `msgpack:"id"`
	Prefix  string `msgpack:"p"`
	Limit   int    `msgpack:"l,omitempty"`
	Suggest *bool  `msgpack:"s,omitempty"`
	Action  string `msgpack:"action,omitempty"`
	Path    string `msgpack:"path,omitempty"`
}

// CompletionSuggestion is one candidate.
type CompletionSuggestion struct {
	Word       string `msgpack:"w"`
	Category   int    `msgpack:"c"`
	Popularity int    `msgpack:"n"`
	Rank       uint16 `msgpack:"r"`
}

// CompletionResponse answers a CompletionRequest.
type CompletionResponse struct {
	ID          string                 `msgpack:"id"`
	Suggestions []CompletionSuggestion `msgpack:"s"`
	Count       int                    `msgpack:"c"`
	TimeTaken   int64                  `msgpack:"t"`
}

// ControlResponse answers reload, rebuild and status actions.
type ControlResponse struct {
	ID       string `msgpack:"id"`
	Status   string `msgpack:"status"`
	State    string `msgpack:"state,omitempty"`
	Source   string `msgpack:"source,omitempty"`
	Hash     string `msgpack:"hash,omitempty"`
	Tags     int    `msgpack:"tags,omitempty"`
	Indexed  int    `msgpack:"indexed,omitempty"`
	LoadedAt int64  `msgpack:"loaded_at,omitempty"`
}

// CompletionError holds basic error information for any request
type CompletionError struct {
	ID    string `msgpack:"id"`
	Error string `msgpack:"e"`
	Code  int    `msgpack:"c"`
}

const (
	ActionReload  = "reload"
	ActionRebuild = "rebuild"
	ActionStatus  = "status"
)
