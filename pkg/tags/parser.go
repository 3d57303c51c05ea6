package tags

import (
	"bufio"
	"encoding/csv"
	"errors"
	"io"
	"iter"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/bastiangx/tagserve/internal/utils"
)

const (
	colName = iota
	colCategory
	colPopularity
	colAliases
	colExtra
)

// Parser streams Records out of a delimited vocabulary file, one per line.
// Each line is split on its own, so an unbalanced quote only spoils its row.
// Malformed rows are skipped. A Parser reads its source once and cannot be rewound.
type Parser struct {
	br      *bufio.Reader
	comma   rune
	cur     Record
	err     error
	done    bool
	rows    int
	skipped int
}

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithDelimiter sets the field delimiter. The default is ','.
func WithDelimiter(d rune) ParserOption {
	return func(p *Parser) {
		if d != 0 && d != '"' && d != '\r' && d != '\n' && utf8.ValidRune(d) {
			p.comma = d
		}
	}
}

// NewParser returns a Parser reading from r.
func NewParser(r io.Reader, opts ...ParserOption) *Parser {
	p := &Parser{br: bufio.NewReader(r), comma: ','}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Next advances to the next valid record. It returns false at the end of the
// stream or on a read error, see Err.
func (p *Parser) Next() bool {
	for !p.done {
		line, err := p.br.ReadString('\n')
		if err != nil {
			if !errors.Is(err, io.EOF) {
				p.err = err
			}
			p.done = true
			if line == "" {
				return false
			}
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}
		p.rows++

		fields, ok := p.split(line)
		if !ok {
			p.skipped++
			continue
		}
		rec, ok := parseFields(fields)
		if !ok {
			p.skipped++
			continue
		}
		if p.rows == 1 && strings.EqualFold(rec.Name, "name") {
			continue
		}
		p.cur = rec
		return true
	}
	return false
}

// split parses one line as a csv record. Stray quotes inside a bare field are
// tolerated; an unterminated quoted field is not.
func (p *Parser) split(line string) ([]string, bool) {
	fields, err := p.readLine(line, false)
	var perr *csv.ParseError
	if errors.As(err, &perr) && errors.Is(perr.Err, csv.ErrBareQuote) {
		fields, err = p.readLine(line, true)
	}
	return fields, err == nil
}

func (p *Parser) readLine(line string, lazy bool) ([]string, error) {
	cr := csv.NewReader(strings.NewReader(line))
	cr.Comma = p.comma
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = lazy
	return cr.Read()
}

// Record returns the record produced by the last successful Next.
func (p *Parser) Record() Record {
	return p.cur
}

// Err returns the first non-syntax read error, if any.
func (p *Parser) Err() error {
	return p.err
}

// Skipped is the number of malformed rows dropped so far.
func (p *Parser) Skipped() int {
	return p.skipped
}

// All yields the remaining records. Check Err once the loop ends.
func (p *Parser) All() iter.Seq[Record] {
	return func(yield func(Record) bool) {
		for p.Next() {
			if !yield(p.Record()) {
				return
			}
		}
	}
}

func parseFields(fields []string) (Record, bool) {
	if len(fields) == 0 {
		return Record{}, false
	}
	name := strings.TrimSpace(strings.ToValidUTF8(fields[colName], "\uFFFD"))
	if utils.IsBlank(name) {
		return Record{}, false
	}

	rec := Record{Name: name, Category: Unknown, Code: NoCode}
	if len(fields) > colCategory {
		if code, err := strconv.Atoi(strings.TrimSpace(fields[colCategory])); err == nil {
			rec.Category = CategoryFromCode(code)
			rec.Code = code
		}
	}
	if len(fields) > colPopularity {
		if n, err := strconv.Atoi(strings.TrimSpace(fields[colPopularity])); err == nil && n > 0 {
			rec.Popularity = n
		}
	}
	if len(fields) > colAliases {
		rec.Aliases = utils.SplitList(fields[colAliases], ",")
	}
	if len(fields) > colExtra {
		rec.Extra = append([]string(nil), fields[colExtra:]...)
	}
	return rec, true
}
