// Package svd minifies a CMSIS-SVD peripheral description into compact JSON.
// Only the fields needed to describe a peripheral, its registers and their fields are kept, register layout such as offsets, sizes and bit positions is dropped.
package svd

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"unicode"
	"unicode/utf8"

	"github.com/svdmin/minify"
)

// ErrMalformed is returned when the document does not decode into a peripheral.
var ErrMalformed = errors.New("malformed SVD")

// Peripheral is the root element of the document.
type Peripheral struct {
	Name        string    `xml:"name" json:"name"`
	Description string    `xml:"description" json:"description"`
	GroupName   string    `xml:"groupName" json:"groupName"`
	BaseAddress string    `xml:"baseAddress" json:"baseAddress"`
	Interrupt   Interrupt `xml:"interrupt" json:"interrupt"`
	Registers   Registers `xml:"registers" json:"registers"`
}

// Interrupt is the interrupt line of a peripheral.
type Interrupt struct {
	Name        string `xml:"name" json:"name"`
	Description string `xml:"description" json:"description"`
	Value       uint32 `xml:"value" json:"value"`
}

// Registers holds the registers of a peripheral.
type Registers struct {
	Register []Register `xml:"register" json:"register"`
}

// Register is a single register, without its address offset, size and access.
type Register struct {
	Name        string `xml:"name" json:"name"`
	DisplayName string `xml:"displayName" json:"displayName"`
	Description string `xml:"description" json:"description"`
	ResetValue  string `xml:"resetValue" json:"resetValue"`
	Fields      Fields `xml:"fields" json:"fields"`
}

// Fields holds the bit fields of a register.
type Fields struct {
	Field []Field `xml:"field" json:"field"`
}

// Field is a bit field, without its bit offset and width.
type Field struct {
	Name        string `xml:"name" json:"name"`
	Description string `xml:"description" json:"description"`
}

////////////////////////////////////////////////////////////////

// DefaultMinifier is the default minifier.
var DefaultMinifier = &Minifier{}

// Minifier is an SVD to JSON minifier.
type Minifier struct{}

// Minify minifies SVD data, it reads from r and writes to w.
func Minify(m *minify.M, w io.Writer, r io.Reader, params map[string]string) error {
	return DefaultMinifier.Minify(m, w, r, params)
}

// Minify minifies SVD data, it reads from r and writes to w.
func (o *Minifier) Minify(_ *minify.M, w io.Writer, r io.Reader, _ map[string]string) error {
	p, err := Decode(r)
	if err != nil {
		return err
	}
	p.normalize()

	// json.Marshal always escapes <, > and &, the encoder can leave them as is
	b := &bytes.Buffer{}
	enc := json.NewEncoder(b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(p); err != nil {
		return err
	}
	_, err = w.Write(bytes.TrimSuffix(b.Bytes(), []byte("\n")))
	return err
}

// Decode reads a peripheral from r. Errors from r are returned as is, anything else that stops decoding is ErrMalformed.
// Every element of the schema is required, as are at least one register per peripheral and one field per register.
func Decode(r io.Reader) (*Peripheral, error) {
	er := &errReader{r: r}
	e := &peripheralElement{}
	if err := xml.NewDecoder(er).Decode(e); err != nil {
		if er.err != nil {
			return nil, er.err
		}
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return e.peripheral()
}

// errReader records the first read error that is not io.EOF.
type errReader struct {
	r   io.Reader
	err error
}

func (r *errReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if err != nil && err != io.EOF && r.err == nil {
		r.err = err
	}
	return n, err
}

func (p *Peripheral) normalize() {
	p.Description = collapseWhitespace(p.Description)
	for i := range p.Registers.Register {
		reg := &p.Registers.Register[i]
		reg.Description = collapseWhitespace(reg.Description)
		for j := range reg.Fields.Field {
			reg.Fields.Field[j].Description = collapseWhitespace(reg.Fields.Field[j].Description)
		}
	}
}

// collapseWhitespace replaces newlines by spaces, any series of two or more whitespace characters by a single space and trims the result.
func collapseWhitespace(s string) string {
	b := make([]byte, 0, len(s))
	for i := 0; i < len(s); {
		r, n := utf8.DecodeRuneInString(s[i:])
		if !unicode.IsSpace(r) {
			b = append(b, s[i:i+n]...)
			i += n
			continue
		}

		j, count := i, 0
		for j < len(s) {
			r, m := utf8.DecodeRuneInString(s[j:])
			if !unicode.IsSpace(r) {
				break
			}
			j += m
			count++
		}
		if 1 < count || s[i] == '\n' {
			b = append(b, ' ')
		} else {
			b = append(b, s[i:j]...)
		}
		i = j
	}
	return string(bytes.TrimFunc(b, unicode.IsSpace))
}
