package xml

import (
	"fmt"
	"io"
	"strconv"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/xml"
)

// TokenType determines the type of token, eg. a start tag or text.
type TokenType uint32

// TokenType values.
const (
	EOFToken TokenType = iota
	StartTagToken
	EndTagToken
	TextToken
)

// String returns the string representation of a TokenType.
func (tt TokenType) String() string {
	switch tt {
	case EOFToken:
		return "EOF"
	case StartTagToken:
		return "StartTag"
	case EndTagToken:
		return "EndTag"
	case TextToken:
		return "Text"
	}
	return "Invalid(" + strconv.Itoa(int(tt)) + ")"
}

// Token is a single parse event. Data holds the tag name for tags and the raw content for text.
// Void marks both halves of a self-closing element, CDATA marks text from a CDATA section.
type Token struct {
	TokenType
	Data  []byte
	Void  bool
	CDATA bool
}

// TokenReader turns the lexer's token stream into start tag, end tag, text and EOF tokens.
// Attributes, comments, doctypes and processing instructions are consumed and dropped.
// At most one token is held back, the end tag of a self-closing element.
type TokenReader struct {
	z *parse.Input
	l *xml.Lexer

	next   Token
	queued bool
	eof    bool
}

// NewTokenReader returns a new TokenReader reading from z.
func NewTokenReader(z *parse.Input) *TokenReader {
	return &TokenReader{
		z: z,
		l: xml.NewLexer(z),
	}
}

// Next returns the next token. Once the end of the input is reached it keeps returning EOFToken.
// Tag names and text point into the input and are valid as long as the input is.
func (r *TokenReader) Next() (Token, error) {
	if r.queued {
		r.queued = false
		return r.next, nil
	} else if r.eof {
		return Token{TokenType: EOFToken}, nil
	}

	var name []byte
	for {
		tt, data := r.l.Next()
		switch tt {
		case xml.ErrorToken:
			if err := r.l.Err(); err != io.EOF {
				return Token{}, fmt.Errorf("%w: %w", ErrMalformed, err)
			} else if name != nil {
				return Token{}, fmt.Errorf("%w: %w", ErrMalformed, parse.NewErrorLexer(r.z, "unexpected end of input in start tag <%s", name))
			}
			r.eof = true
			return Token{TokenType: EOFToken}, nil
		case xml.StartTagToken:
			name = r.l.Text()
		case xml.StartTagCloseToken:
			return Token{TokenType: StartTagToken, Data: name}, nil
		case xml.StartTagCloseVoidToken:
			r.next = Token{TokenType: EndTagToken, Data: name, Void: true}
			r.queued = true
			return Token{TokenType: StartTagToken, Data: name, Void: true}, nil
		case xml.EndTagToken:
			return Token{TokenType: EndTagToken, Data: parse.TrimWhitespace(r.l.Text())}, nil
		case xml.TextToken:
			return Token{TokenType: TextToken, Data: data}, nil
		case xml.CDATAToken:
			return Token{TokenType: TextToken, Data: r.l.Text(), CDATA: true}, nil
		}
	}
}
