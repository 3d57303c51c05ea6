// Package cli handles cmd line input and suggestions for DBG and testing tag completion
package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/bastiangx/tagserve/internal/utils"
	"github.com/bastiangx/tagserve/pkg/completion"
)

var (
	nameStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))
	fuzzyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Italic(true)
)

// InputHandler reads terms line by line and prints completions for each.
type InputHandler struct {
	provider      *completion.Provider
	maxTermLength int
	suggestLimit  int
	suggest       bool
	in            io.Reader
	out           io.Writer
}

// NewInputHandler handles initialization of the InputHandler with basic parameters
func NewInputHandler(p *completion.Provider, maxLength, limit int, suggest bool, in io.Reader, out io.Writer) *InputHandler {
	return &InputHandler{
		provider:      p,
		maxTermLength: maxLength,
		suggestLimit:  limit,
		suggest:       suggest,
		in:            in,
		out:           out,
	}
}

// Start runs the prompt loop until input ends.
func (h *InputHandler) Start() error {
	fmt.Fprintln(h.out, "TagServe CLI")
	fmt.Fprintln(h.out, "type a tag prefix and press Enter to see the suggestions (Ctrl+D to exit):")

	scanner := bufio.NewScanner(h.in)
	for {
		fmt.Fprint(h.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(h.out)
			return scanner.Err()
		}
		term := strings.TrimSpace(scanner.Text())
		if term == "" {
			continue
		}
		h.HandleInput(term)
	}
}

// HandleInput prints the completions for a single term.
func (h *InputHandler) HandleInput(term string) {
	if h.maxTermLength > 0 && utf8.RuneCountInString(term) > h.maxTermLength {
		fmt.Fprintf(h.out, "Term too long: %s\n", utils.TruncateRunes(term, h.maxTermLength))
		return
	}

	start := time.Now()
	results := h.provider.GetCompletions(term, h.suggestLimit, h.suggest)
	log.Debugf("Took [ %v ] for term '%s'", time.Since(start), term)

	if len(results) == 0 {
		fmt.Fprintf(h.out, "No suggestions found for '%s'\n", term)
		return
	}

	fmt.Fprintf(h.out, "Found %d suggestions for '%s':\n", len(results), term)
	for i, c := range results {
		name := nameStyle.Render(c.Name)
		if c.Fuzzy {
			name = fuzzyStyle.Render(c.Name)
		}
		fmt.Fprintf(h.out, "%2d. %-40s %-10s (popularity: %8s)\n",
			i+1, name, c.Record.Category, utils.FormatWithCommas(c.Record.Popularity))
	}
}
