// Package argv splits command lines typed at the command prompt.
package argv

import (
	"errors"
	"iter"
	"strings"
	"unicode/utf8"
)

// ErrUnterminatedQuote is returned when a quote is left open.
var ErrUnterminatedQuote = errors.New("unterminated quote")

// Token is one argument with its bounds, in bytes, in the source line.
// Start and End include any quotes.
type Token struct {
	Text   string
	Start  int
	End    int
	Quoted bool
}

// TokensSeq yields the arguments of s. Rules:
//   - unquoted spaces and tabs separate arguments
//   - single quotes keep their contents literally
//   - double quotes keep their contents, except that \" and \\ are escapes
//   - outside quotes a backslash escapes whitespace, quotes, ';' and itself;
//     before anything else it is literal, so Windows paths survive
//
// An open quote at the end yields the partial token followed by
// ErrUnterminatedQuote.
func TokensSeq(s string) iter.Seq2[Token, error] {
	return func(yield func(Token, error) bool) {
		var (
			buf     strings.Builder
			start   = -1
			quote   rune
			quoted  bool
			flushed = true
		)
		flush := func(end int) bool {
			if flushed {
				return true
			}
			tok := Token{Text: buf.String(), Start: start, End: end, Quoted: quoted}
			buf.Reset()
			start, quoted, flushed = -1, false, true
			return yield(tok, nil)
		}
		begin := func(i int) {
			if flushed {
				start, flushed = i, false
			}
		}

		for i := 0; i < len(s); {
			r, size := utf8.DecodeRuneInString(s[i:])
			switch {
			case quote == '\'':
				if r == '\'' {
					quote = 0
				} else {
					buf.WriteRune(r)
				}

			case quote == '"':
				switch {
				case r == '"':
					quote = 0
				case r == '\\' && i+1 < len(s) && (s[i+1] == '"' || s[i+1] == '\\'):
					buf.WriteByte(s[i+1])
					size++
				default:
					buf.WriteRune(r)
				}

			case r == ' ' || r == '\t':
				if !flush(i) {
					return
				}

			case r == '\'' || r == '"':
				begin(i)
				quote, quoted = r, true

			case r == '\\' && i+1 < len(s) && strings.IndexByte(" \t'\";\\", s[i+1]) >= 0:
				begin(i)
				buf.WriteByte(s[i+1])
				size++

			default:
				begin(i)
				buf.WriteRune(r)
			}
			i += size
		}

		if quote != 0 {
			if flush(len(s)) {
				yield(Token{}, ErrUnterminatedQuote)
			}
			return
		}
		flush(len(s))
	}
}

// Split returns the arguments of s.
func Split(s string) ([]string, error) {
	out := make([]string, 0, 4)
	for tok, err := range TokensSeq(s) {
		if err != nil {
			return out, err
		}
		out = append(out, tok.Text)
	}
	return out, nil
}

// Statements splits a line on ';' outside quotes. Escaped separators stay
// escaped for the per-statement Split.
func Statements(line string) []string {
	var (
		out   []string
		quote byte
		last  int
	)
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			} else if c == '\\' && quote == '"' {
				i++
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '\\':
			i++
		case c == ';':
			out = append(out, line[last:i])
			last = i + 1
		}
	}
	return append(out, line[last:])
}
