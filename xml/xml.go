// Package xml minifies XML documents by renaming every tag to a single character symbol.
// The output starts with the symbol table, a comma separated list of symbol=name pairs in order of first occurrence, followed by a newline and the rewritten document.
// Attributes, comments, doctypes and processing instructions are removed and text is normalized, see Normalize.
// Elements in the ignore set (register layout tags of CMSIS-SVD files such as baseAddress and bitWidth) are removed together with their content.
package xml

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/svdmin/minify"
	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/xml"
)

var (
	ltBytes              = []byte("<")
	gtBytes              = []byte(">")
	voidBytes            = []byte("/>")
	endBytes             = []byte("</")
	newlineBytes         = []byte("\n")
	cdataStartBytes      = []byte("<![CDATA[")
	cdataEndBytes        = []byte("]]>")
	escapedCDATAEndBytes = []byte("]]&gt;")
	escapedLtBytes       = []byte("&lt;")
	escapedAmpBytes      = []byte("&amp;")
)

var (
	// ErrMalformed is returned when the document cannot be tokenized or its tags are not properly nested.
	ErrMalformed = errors.New("malformed XML")

	// ErrEncoding is returned when a tag name or text is not valid UTF-8.
	ErrEncoding = errors.New("invalid UTF-8")

	errFinished = errors.New("token after end of document")
)

// ignoreTags are removed from the output together with everything they contain, they never receive a symbol.
var ignoreTags = map[string]bool{
	"baseAddress":   true,
	"addressBlock":  true,
	"addressOffset": true,
	"offset":        true,
	"size":          true,
	"usage":         true,
	"access":        true,
	"resetValue":    true,
	"bitOffset":     true,
	"bitWidth":      true,
}

////////////////////////////////////////////////////////////////

// DefaultMinifier is the default minifier.
var DefaultMinifier = &Minifier{}

// Minifier is an XML minifier.
type Minifier struct {
	// Alphabet overrides DefaultAlphabet, its length is the maximum number of distinct tags in a document.
	Alphabet string
}

// Minify minifies XML data, it reads from r and writes to w.
func Minify(m *minify.M, w io.Writer, r io.Reader, params map[string]string) error {
	return DefaultMinifier.Minify(m, w, r, params)
}

// Minify minifies XML data, it reads from r and writes to w.
// Nothing is written to w when an error occurs while processing the document.
func (o *Minifier) Minify(_ *minify.M, w io.Writer, r io.Reader, _ map[string]string) error {
	alphabet := DefaultAlphabet
	if o.Alphabet != "" {
		alphabet = []byte(o.Alphabet)
		if err := validAlphabet(alphabet); err != nil {
			return err
		}
	}

	z := parse.NewInput(r)
	defer z.Restore()
	if err := z.Err(); err != nil && err != io.EOF {
		return err
	}

	rw := newRewriter(z, NewSymbolTable(alphabet))
	if err := rw.run(NewTokenReader(z)); err != nil {
		return err
	}

	if _, err := w.Write(rw.table.AppendTo(nil)); err != nil {
		return err
	}
	if _, err := w.Write(newlineBytes); err != nil {
		return err
	}
	if _, err := w.Write(rw.out.Bytes()); err != nil {
		return err
	}
	return nil
}

////////////////////////////////////////////////////////////////

// rewriter consumes tokens in document order and writes the renamed document to its output buffer.
// Inside an ignored element it only keeps count of the open elements until that element is closed.
type rewriter struct {
	z     *parse.Input
	table *SymbolTable
	out   *bytes.Buffer

	open [][]byte // names of the open elements, innermost last
	skip int      // number of open elements inside and including the outermost ignored element
	done bool

	textBuf  []byte
	cdataBuf []byte
}

func newRewriter(z *parse.Input, table *SymbolTable) *rewriter {
	return &rewriter{
		z:     z,
		table: table,
		out:   bytes.NewBuffer(make([]byte, 0, z.Len()/2)),
	}
}

func (rw *rewriter) run(tr *TokenReader) error {
	for !rw.done {
		t, err := tr.Next()
		if err != nil {
			return err
		}
		if err := rw.step(t); err != nil {
			return err
		}
	}
	return nil
}

func (rw *rewriter) step(t Token) error {
	if rw.done {
		return errFinished
	}

	switch t.TokenType {
	case StartTagToken:
		if !utf8.Valid(t.Data) {
			return rw.errorf(ErrEncoding, "in tag name <%s>", t.Data)
		}
		rw.open = append(rw.open, t.Data)
		if 0 < rw.skip || ignoreTags[string(t.Data)] {
			rw.skip++
			return nil
		}

		sym, err := rw.table.Resolve(t.Data)
		if err != nil {
			return err
		}
		rw.out.Write(ltBytes)
		rw.out.WriteByte(sym)
		if t.Void {
			rw.out.Write(voidBytes)
		} else {
			rw.out.Write(gtBytes)
		}
	case EndTagToken:
		if len(rw.open) == 0 {
			return rw.errorf(ErrMalformed, "unexpected end tag </%s>", t.Data)
		} else if name := rw.open[len(rw.open)-1]; !bytes.Equal(name, t.Data) {
			return rw.errorf(ErrMalformed, "end tag </%s> does not match start tag <%s>", t.Data, name)
		}
		rw.open = rw.open[:len(rw.open)-1]
		if 0 < rw.skip {
			rw.skip--
			return nil
		} else if t.Void {
			return nil
		}

		sym, err := rw.table.Resolve(t.Data)
		if err != nil {
			return err
		}
		rw.out.Write(endBytes)
		rw.out.WriteByte(sym)
		rw.out.Write(gtBytes)
	case TextToken:
		if 0 < rw.skip {
			return nil
		} else if !utf8.Valid(t.Data) {
			return rw.errorf(ErrEncoding, "in text")
		}

		rw.textBuf = appendNormalized(rw.textBuf[:0], t.Data)
		if len(rw.textBuf) == 0 {
			return nil
		}
		if t.CDATA {
			rw.writeCDATA(rw.textBuf)
		} else {
			rw.writeText(rw.textBuf)
		}
	case EOFToken:
		if 0 < len(rw.open) {
			return rw.errorf(ErrMalformed, "unexpected end of input, <%s> is not closed", rw.open[len(rw.open)-1])
		}
		rw.done = true
	}
	return nil
}

// writeText writes raw text, escaping a ]]> that whitespace removal may have produced.
func (rw *rewriter) writeText(b []byte) {
	for {
		i := bytes.Index(b, cdataEndBytes)
		if i == -1 {
			rw.out.Write(b)
			return
		}
		rw.out.Write(b[:i])
		rw.out.Write(escapedCDATAEndBytes)
		b = b[i+len(cdataEndBytes):]
	}
}

// writeCDATA writes the content of a CDATA section either as escaped text or as a CDATA section, whichever is shorter.
func (rw *rewriter) writeCDATA(b []byte) {
	if !bytes.Contains(b, cdataEndBytes) {
		if data, useText := xml.EscapeCDATAVal(&rw.cdataBuf, b); useText {
			rw.writeText(data)
		} else {
			rw.out.Write(cdataStartBytes)
			rw.out.Write(data)
			rw.out.Write(cdataEndBytes)
		}
		return
	}

	start := 0
	for i, c := range b {
		if c == '<' {
			rw.out.Write(b[start:i])
			rw.out.Write(escapedLtBytes)
			start = i + 1
		} else if c == '&' {
			rw.out.Write(b[start:i])
			rw.out.Write(escapedAmpBytes)
			start = i + 1
		}
	}
	rw.writeText(b[start:])
}

func (rw *rewriter) errorf(kind error, format string, a ...interface{}) error {
	return fmt.Errorf("%w: %w", kind, parse.NewErrorLexer(rw.z, format, a...))
}
