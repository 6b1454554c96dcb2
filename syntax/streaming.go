package syntax

import (
	"bufio"
	"fmt"
	"io"
	"iter"
)

// DefaultMaxBytes is the byte cap [MaxBytes] applies when a Parser is
// constructed without an explicit one. It bounds worst-case parse time and
// memory for a single source on its own, independent of anything an
// embedding interpreter layers on top (recursive eval/source re-parses,
// say) — a shell embedded in a host that streams untrusted input must
// never tokenize an unbounded blob just to find out it's too large.
const DefaultMaxBytes = 8 << 20 // 8 MiB

// MaxBytesError is returned by a Parser's entry points when the input
// exceeds the configured MaxBytes cap. It is detected from the raw byte
// count alone, before any tokenizing begins.
type MaxBytesError struct {
	Filename string
	Size     int
	Max      int
}

func (e *MaxBytesError) Error() string {
	prefix := ""
	if e.Filename != "" {
		prefix = e.Filename + ": "
	}
	return fmt.Sprintf("%sinput too large to parse: %d bytes exceeds the %d byte limit", prefix, e.Size, e.Max)
}

// Parser holds state used across the streaming parse helpers below. A
// Parser can be reused for multiple calls to Parse, Document or Words, but
// is not safe for concurrent use.
type Parser struct {
	mode ParseMode

	maxBytes int

	incomplete bool
}

// ParserOption is a function which applies a setting to a Parser returned
// by NewParser.
type ParserOption func(*Parser)

// KeepComments makes the parser attach comments to the syntax tree, the
// same as passing ParseComments to Parse directly.
func KeepComments(keep bool) ParserOption {
	return func(p *Parser) {
		if keep {
			p.mode |= ParseComments
		} else {
			p.mode &^= ParseComments
		}
	}
}

// Posix makes the parser follow the POSIX shell spec instead of bash's, the
// same as passing PosixConformant to Parse directly.
func Posix(enabled bool) ParserOption {
	return func(p *Parser) {
		if enabled {
			p.mode |= PosixConformant
		} else {
			p.mode &^= PosixConformant
		}
	}
}

// MaxBytes caps how many bytes of source a Parser will tokenize in a single
// Parse, Document or Words call. Reading past the cap fails immediately
// with a [MaxBytesError], before the lexer ever sees a single byte of the
// input; this guarantees parsing itself always terminates quickly
// regardless of how large or adversarial the source is. n <= 0 disables
// the cap entirely. NewParser applies [DefaultMaxBytes] when MaxBytes is
// never passed at all.
func MaxBytes(n int) ParserOption {
	return func(p *Parser) {
		p.maxBytes = n
	}
}

// NewParser allocates a new Parser and applies any number of options. A
// Parser constructed this way enforces [DefaultMaxBytes] unless overridden
// with the [MaxBytes] option.
func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{maxBytes: DefaultMaxBytes}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Parser) checkSize(name string, n int) error {
	if p.maxBytes > 0 && n > p.maxBytes {
		return &MaxBytesError{Filename: name, Size: n, Max: p.maxBytes}
	}
	return nil
}

// Parse reads and parses a shell program from r, the same as the
// package-level Parse function, using whatever mode was configured via
// NewParser's options.
func (p *Parser) Parse(r io.Reader, name string) (*File, error) {
	src, err := io.ReadAll(io.LimitReader(r, int64(p.readLimit())))
	if err != nil {
		return nil, err
	}
	if err := p.checkSize(name, len(src)); err != nil {
		return nil, err
	}
	return Parse(src, name, p.mode)
}

// Document parses r as a single word, recognizing parameter, arithmetic and
// command expansions the same way a double-quoted string would, but without
// requiring the caller to add the quotes or worry about word splitting.
func (p *Parser) Document(r io.Reader) (*Word, error) {
	src, err := io.ReadAll(io.LimitReader(r, int64(p.readLimit())))
	if err != nil {
		return nil, err
	}
	if err := p.checkSize("", len(src)); err != nil {
		return nil, err
	}
	ip := parserFree.Get().(*parser)
	ip.reset()
	ip.f = &File{Lines: []int{0}}
	ip.src, ip.mode = src, p.mode
	ip.quote = dblQuotes
	ip.next()
	w := ip.word()
	perr := ip.err
	parserFree.Put(ip)
	if perr != nil {
		return nil, perr
	}
	return &w, nil
}

// Words parses r as a sequence of space-separated words, invoking fn for
// each one in turn. Parsing stops as soon as fn returns false.
func (p *Parser) Words(r io.Reader, fn func(*Word) bool) error {
	src, err := io.ReadAll(io.LimitReader(r, int64(p.readLimit())))
	if err != nil {
		return err
	}
	if err := p.checkSize("", len(src)); err != nil {
		return err
	}
	ip := parserFree.Get().(*parser)
	ip.reset()
	ip.f = &File{Lines: []int{0}}
	ip.src, ip.mode = src, p.mode
	ip.next()
	for ip.tok != _EOF {
		w := ip.word()
		if ip.err != nil {
			break
		}
		if !fn(&w) {
			break
		}
	}
	perr := ip.err
	parserFree.Put(ip)
	return perr
}

// readLimit returns how many bytes Parse/Document/Words will pull from the
// reader before giving up: the configured cap plus one, so a source that is
// exactly one byte too large is still detected (rather than silently
// truncated into something that parses).
func (p *Parser) readLimit() int {
	if p.maxBytes <= 0 {
		return int(^uint(0) >> 1) // no cap: read to EOF
	}
	return p.maxBytes + 1
}

// Incomplete reports whether the last batch of statements yielded by
// InteractiveSeq ended with a parse error that more input might resolve,
// such as an unterminated quote or an unclosed block. Callers typically use
// this to print a secondary prompt and keep reading.
func (p *Parser) Incomplete() bool {
	return p.incomplete
}

// InteractiveSeq parses input from r line by line, yielding a batch of
// statements as soon as a line completes one or more of them. If a line
// ends in the middle of a statement, Incomplete reports true and an empty,
// nil-error batch is yielded so that the caller can print a continuation
// prompt and keep feeding input.
//
// A parse error is only ever treated as final once r itself is exhausted;
// until then, any error is assumed to mean "needs more input", since the
// underlying engine parses a whole source snapshot at a time rather than
// tracking lexer state incrementally.
func (p *Parser) InteractiveSeq(r io.Reader) iter.Seq2[[]*Stmt, error] {
	return func(yield func([]*Stmt, error) bool) {
		br := bufio.NewReader(r)
		var buf []byte
		for {
			line, rerr := br.ReadString('\n')
			buf = append(buf, line...)
			atEOF := rerr == io.EOF

			if len(buf) == 0 {
				if atEOF {
					return
				}
				if rerr != nil {
					yield(nil, rerr)
					return
				}
				continue
			}

			if err := p.checkSize("", len(buf)); err != nil {
				p.incomplete = false
				yield(nil, err)
				return
			}

			file, perr := Parse(buf, "", p.mode)
			switch {
			case perr == nil:
				p.incomplete = false
				buf = nil
				if !yield(file.Stmts, nil) {
					return
				}
			case atEOF:
				p.incomplete = false
				yield(nil, perr)
				return
			default:
				p.incomplete = true
				if !yield(nil, nil) {
					return
				}
			}

			if atEOF {
				return
			}
			if rerr != nil && !atEOF {
				yield(nil, rerr)
				return
			}
		}
	}
}
