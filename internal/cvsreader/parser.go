package cvsreader

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Visitor receives the content of one RCS ",v" file as it is parsed, in
// the order spec'd for the external collaborator in spec §6. A Parser
// never builds its own tree; every fact it discovers is reported through
// one of these methods.
type Visitor interface {
	SetPrincipalBranch(num string)
	SetExpansion(mode string)
	DefineTag(name, revisionNumber string)
	DefineRevision(rev string, timestamp time.Time, author, state string, branches []string, next string)
	TreeCompleted()
	SetRevisionInfo(rev, log, text string)
}

// Parser drives a Lexer with one token of lookahead, in the same shape as
// the reference RCS parser it is grounded on: parseHeader, then
// parseDeltas, then parseDesc, then parseDeltaTexts, each a token-switch
// over field names terminated by semicolons.
type Parser struct {
	lex   *Lexer
	tok   Token
	path  string // for error messages only
}

// NewParser creates a Parser for r. path is used only to decorate error
// messages (spec §7: parse errors must be attributable to a file).
func NewParser(lex *Lexer, path string) *Parser {
	p := &Parser{lex: lex, path: path}
	p.advance()
	return p
}

func (p *Parser) advance() {
	p.tok = p.lex.NextToken()
}

func (p *Parser) errf(format string, args ...interface{}) error {
	return fmt.Errorf("cvsreader: %s: "+format, append([]interface{}{p.path}, args...)...)
}

func (p *Parser) expect(tt TokenType) (Token, error) {
	if p.tok.Type != tt {
		return Token{}, p.errf("expected %s, got %s %q", tt, p.tok.Type, p.tok.Value)
	}
	tok := p.tok
	p.advance()
	return tok, nil
}

// skipToSemicolon consumes tokens up to and including the next semicolon.
// RCS header fields the parser does not care about (locks, strict,
// comment, expand when not visited) are discarded this way, matching the
// reference parser's tolerance for fields it does not model explicitly.
func (p *Parser) skipToSemicolon() {
	for p.tok.Type != TokenSemicolon && p.tok.Type != TokenEOF {
		p.advance()
	}
	if p.tok.Type == TokenSemicolon {
		p.advance()
	}
}

// Parse reads one whole RCS file and drives v. It returns a non-nil error
// on malformed input; per spec §7 a parse error is fatal for that file
// only, so callers accumulate these across a tree walk rather than
// aborting the whole pass.
func (p *Parser) Parse(v Visitor) error {
	if err := p.parseHeader(v); err != nil {
		return err
	}
	if err := p.parseDeltas(v); err != nil {
		return err
	}
	v.TreeCompleted()
	if err := p.parseDesc(); err != nil {
		return err
	}
	if err := p.parseDeltaTexts(v); err != nil {
		return err
	}
	return nil
}

// parseHeader consumes the "head", "branch", "access", "symbols",
// "locks", "strict", "comment" and "expand" fields that precede the
// per-revision admin blocks.
func (p *Parser) parseHeader(v Visitor) error {
	for p.tok.Type == TokenIdent {
		switch p.tok.Value {
		case "head":
			p.advance()
			p.skipToSemicolon()
		case "branch":
			p.advance()
			if p.tok.Type == TokenNumber {
				v.SetPrincipalBranch(p.tok.Value)
			}
			p.skipToSemicolon()
		case "access":
			p.advance()
			p.skipToSemicolon()
		case "symbols":
			p.advance()
			if err := p.parseSymbols(v); err != nil {
				return err
			}
		case "locks":
			p.advance()
			p.skipToSemicolon()
		case "strict":
			p.advance()
			p.skipToSemicolon()
		case "comment":
			p.advance()
			p.skipToSemicolon()
		case "expand":
			p.advance()
			if p.tok.Type == TokenString {
				v.SetExpansion(p.tok.Value)
			}
			p.skipToSemicolon()
		default:
			// Reached the first revision-number admin block.
			return nil
		}
	}
	return nil
}

// parseSymbols consumes "tag:revision tag:revision ..." pairs up to the
// terminating semicolon, reporting each as a DefineTag call.
func (p *Parser) parseSymbols(v Visitor) error {
	for p.tok.Type == TokenIdent {
		name := p.tok.Value
		p.advance()
		if _, err := p.expect(TokenColon); err != nil {
			return err
		}
		rev, err := p.expect(TokenNumber)
		if err != nil {
			return err
		}
		v.DefineTag(name, rev.Value)
	}
	if _, err := p.expect(TokenSemicolon); err != nil {
		return err
	}
	return nil
}

// parseDeltas consumes the sequence of per-revision admin blocks:
//
//	<rev>
//	date <date>; author <author>; state <state>;
//	branches <rev> <rev> ...;
//	next <rev>;
//
// terminating at the "desc" keyword.
func (p *Parser) parseDeltas(v Visitor) error {
	for p.tok.Type == TokenNumber {
		rev := p.tok.Value
		p.advance()

		var (
			ts           time.Time
			author       string
			state        string
			branches     []string
			next         string
			sawDate      bool
		)
		for p.tok.Type == TokenIdent {
			switch p.tok.Value {
			case "date":
				p.advance()
				dateTok, err := p.expect(TokenNumber)
				if err != nil {
					return err
				}
				ts = parseRCSDate(dateTok.Value)
				sawDate = true
				if _, err := p.expect(TokenSemicolon); err != nil {
					return err
				}
				if p.tok.Type == TokenIdent && p.tok.Value == "author" {
					p.advance()
					if p.tok.Type == TokenIdent || p.tok.Type == TokenNumber {
						author = p.tok.Value
						p.advance()
					}
					if _, err := p.expect(TokenSemicolon); err != nil {
						return err
					}
				}
				if p.tok.Type == TokenIdent && p.tok.Value == "state" {
					p.advance()
					if p.tok.Type == TokenIdent {
						state = p.tok.Value
						p.advance()
					}
					p.skipToSemicolon()
				}
			case "branches":
				p.advance()
				for p.tok.Type == TokenNumber {
					branches = append(branches, p.tok.Value)
					p.advance()
				}
				if _, err := p.expect(TokenSemicolon); err != nil {
					return err
				}
			case "next":
				p.advance()
				if p.tok.Type == TokenNumber {
					next = p.tok.Value
					p.advance()
				}
				if _, err := p.expect(TokenSemicolon); err != nil {
					return err
				}
			case "commitid":
				p.advance()
				p.skipToSemicolon()
			case "desc":
				// Sibling top-level field, not a per-revision one: leave
				// it untouched for parseDesc and end this revision block.
				goto doneFields
			default:
				// Vendor extension fields (e.g. "kopt", "filename") that
				// this reader does not model: skip the value.
				p.advance()
				p.skipToSemicolon()
			}
		}
	doneFields:
		if !sawDate {
			return p.errf("revision %s missing date field", rev)
		}
		v.DefineRevision(rev, ts, author, state, branches, next)
	}
	return nil
}

// parseDesc consumes the top-level "desc" string field.
func (p *Parser) parseDesc() error {
	if p.tok.Type != TokenIdent || p.tok.Value != "desc" {
		return p.errf("expected desc field, got %s %q", p.tok.Type, p.tok.Value)
	}
	p.advance()
	if _, err := p.expect(TokenString); err != nil {
		return err
	}
	return nil
}

// parseDeltaTexts consumes the trailing sequence of per-revision
// "<rev> log <string> text <string>" blocks.
func (p *Parser) parseDeltaTexts(v Visitor) error {
	for p.tok.Type == TokenNumber {
		rev := p.tok.Value
		p.advance()

		var log, text string
		for p.tok.Type == TokenIdent {
			switch p.tok.Value {
			case "log":
				p.advance()
				tok, err := p.expect(TokenString)
				if err != nil {
					return err
				}
				log = tok.Value
			case "text":
				p.advance()
				tok, err := p.expect(TokenString)
				if err != nil {
					return err
				}
				text = tok.Value
			default:
				return p.errf("unexpected field %q in delta text block for %s", p.tok.Value, rev)
			}
		}
		v.SetRevisionInfo(rev, log, text)
	}
	return nil
}

// parseRCSDate parses RCS's "YY.MM.DD.HH.MM.SS" (or "YYYY.MM.DD...")
// admin date field into a UTC time.Time. A two-digit year below 100 is
// interpreted the way RCS itself does: 00-68 is 2000-2068, 69-99 is
// 1969-1999 (the POSIX/RCS convention carried over from `co -d`).
func parseRCSDate(s string) time.Time {
	parts := strings.Split(s, ".")
	if len(parts) != 6 {
		return time.Time{}
	}
	nums := make([]int, 6)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return time.Time{}
		}
		nums[i] = n
	}
	year := nums[0]
	if year < 100 {
		if year < 69 {
			year += 2000
		} else {
			year += 1900
		}
	}
	return time.Date(year, time.Month(nums[1]), nums[2], nums[3], nums[4], nums[5], 0, time.UTC)
}
