package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/bastiangx/tagserve/internal/logger"
	"github.com/bastiangx/tagserve/internal/utils"
	"github.com/bastiangx/tagserve/pkg/completion"
)

// Options holds server defaults, normally taken from the [search] config section.
type Options struct {
	MaxResults      int
	SuggestOnPrefix bool
	MaxTermLength   int
	// Source is reloaded when a control request names no path and nothing is loaded yet.
	Source string
	Logger *log.Logger
}

// Server handles IPC for tag completions
type Server struct {
	provider *completion.Provider
	opts     Options
	in       io.Reader
	dec      *msgpack.Decoder
	enc      *msgpack.Encoder
	log      *log.Logger
}

type frame struct {
	raw msgpack.RawMessage
	err error
}

// NewServer creates a server reading requests from in and writing responses to out.
func NewServer(p *completion.Provider, in io.Reader, out io.Writer, opts Options) *Server {
	if opts.MaxResults < 1 {
		opts.MaxResults = 20
	}
	return &Server{
		provider: p,
		opts:     opts,
		in:       in,
		dec:      msgpack.NewDecoder(bufio.NewReader(in)),
		enc:      msgpack.NewEncoder(out),
		log:      logger.OrDefault(opts.Logger, "server"),
	}
}

// Start serves requests until in is exhausted or ctx is done. When ctx ends
// first, in is closed if it is an io.Closer so the pending read returns.
func (s *Server) Start(ctx context.Context) error {
	s.log.Debug("Starting server.")
	if err := s.send(ControlResponse{Status: "ready"}); err != nil {
		return err
	}

	done := make(chan struct{})
	defer close(done)
	frames := s.read(done)

	for {
		var f frame
		select {
		case <-ctx.Done():
			if c, ok := s.in.(io.Closer); ok {
				c.Close()
			}
			return ctx.Err()
		case f = <-frames:
		}
		if f.err != nil {
			if errors.Is(f.err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read request: %w", f.err)
		}

		var req CompletionRequest
		if err := msgpack.Unmarshal(f.raw, &req); err != nil {
			s.log.Debugf("Invalid request: %v", err)
			if err := s.sendError("", "invalid request", 400); err != nil {
				return err
			}
			continue
		}
		if err := s.handle(req); err != nil {
			return err
		}
	}
}

// read decodes raw frames on its own goroutine until a read fails or done closes.
func (s *Server) read(done <-chan struct{}) <-chan frame {
	frames := make(chan frame)
	go func() {
		for {
			// decode the raw value first so a badly typed request does not desync the stream
			var f frame
			f.err = s.dec.Decode(&f.raw)
			select {
			case frames <- f:
			case <-done:
				return
			}
			if f.err != nil {
				return
			}
		}
	}()
	return frames
}

func (s *Server) handle(req CompletionRequest) error {
	switch req.Action {
	case "":
		return s.handleComplete(req)
	case ActionReload, ActionRebuild:
		path := req.Path
		if path == "" {
			path = s.provider.Source()
		}
		if path == "" {
			path = s.opts.Source
		}
		if path == "" {
			return s.sendError(req.ID, "no source to load", 400)
		}
		s.provider.TriggerLoad(path, req.Action == ActionRebuild)
		return s.send(ControlResponse{ID: req.ID, Status: "loading"})
	case ActionStatus:
		st := s.provider.Stats()
		resp := ControlResponse{
			ID:      req.ID,
			Status:  "ok",
			State:   st.State.String(),
			Source:  st.Source,
			Hash:    st.Hash,
			Tags:    st.Tags,
			Indexed: st.Indexed,
		}
		if !st.LoadedAt.IsZero() {
			resp.LoadedAt = st.LoadedAt.Unix()
		}
		return s.send(resp)
	}
	return s.sendError(req.ID, fmt.Sprintf("unknown action: %s", req.Action), 400)
}

func (s *Server) handleComplete(req CompletionRequest) error {
	if utils.IsBlank(req.Prefix) {
		return s.sendError(req.ID, "missing prefix", 400)
	}
	if s.opts.MaxTermLength > 0 && utf8.RuneCountInString(req.Prefix) > s.opts.MaxTermLength {
		return s.sendError(req.ID, fmt.Sprintf("prefix exceeds maximum length of %d characters", s.opts.MaxTermLength), 400)
	}

	limit := req.Limit
	if limit < 1 {
		limit = s.opts.MaxResults
	}
	suggest := s.opts.SuggestOnPrefix
	if req.Suggest != nil {
		suggest = *req.Suggest
	}

	start := time.Now()
	results := s.provider.GetCompletions(req.Prefix, limit, suggest)
	elapsed := time.Since(start)

	ranks := utils.CreateRankList(len(results))
	suggestions := make([]CompletionSuggestion, len(results))
	for i, c := range results {
		suggestions[i] = CompletionSuggestion{
			Word:       c.Name,
			Category:   c.Record.Code,
			Popularity: c.Record.Popularity,
			Rank:       ranks[i],
		}
	}

	return s.send(CompletionResponse{
		ID:          req.ID,
		Suggestions: suggestions,
		Count:       len(suggestions),
		TimeTaken:   elapsed.Microseconds(),
	})
}

func (s *Server) send(v any) error {
	if err := s.enc.Encode(v); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	return nil
}

func (s *Server) sendError(id, message string, code int) error {
	return s.send(CompletionError{ID: id, Error: message, Code: code})
}
