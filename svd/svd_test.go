package svd

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/svdmin/minify"
	"github.com/tdewolff/test"
)

const peripheral = `<?xml version="1.0" encoding="utf-8"?>
<peripheral>
  <name>TIMER0</name>
  <description>32-bit   Timer
    with prescaler</description>
  <groupName>TIMER</groupName>
  <baseAddress>0x40010000</baseAddress>
  <addressBlock>
    <offset>0</offset>
    <size>0x100</size>
    <usage>registers</usage>
  </addressBlock>
  <interrupt>
    <name>TIMER0</name>
    <description>Timer 0 interrupt</description>
    <value>4</value>
  </interrupt>
  <registers>
    <register>
      <name>CR</name>
      <displayName>CR</displayName>
      <description>Control
        register</description>
      <addressOffset>0x00</addressOffset>
      <size>32</size>
      <access>read-write</access>
      <resetValue>0x00000000</resetValue>
      <fields>
        <field>
          <name>EN</name>
          <description>Enable &lt;timer&gt;</description>
          <bitOffset>0</bitOffset>
          <bitWidth>1</bitWidth>
        </field>
      </fields>
    </register>
  </registers>
</peripheral>`

func TestSVD(t *testing.T) {
	expected := `{"name":"TIMER0","description":"32-bit Timer with prescaler","groupName":"TIMER","baseAddress":"0x40010000","interrupt":{"name":"TIMER0","description":"Timer 0 interrupt","value":4},"registers":{"register":[{"name":"CR","displayName":"CR","description":"Control register","resetValue":"0x00000000","fields":{"field":[{"name":"EN","description":"Enable <timer>"}]}}]}}`

	w := &bytes.Buffer{}
	err := Minify(minify.New(), w, bytes.NewBufferString(peripheral), nil)
	test.Minify(t, "peripheral", err, w.String(), expected)
}

func TestSVDErrors(t *testing.T) {
	var errorTests = []string{
		"",
		"<peripheral><name>x</name>",
		"<peripheral><interrupt><value>x</value></interrupt></peripheral>",
		"<peripheral></periph>",
		"<peripheral><name>P</name><registers><register><name>R</name></register></registers></peripheral>",
		strings.Replace(peripheral, "<groupName>TIMER</groupName>", "", 1),
		peripheral[:strings.Index(peripheral, "<interrupt>")] + peripheral[strings.Index(peripheral, "<registers>"):],
		strings.Replace(peripheral, "<value>4</value>", "", 1),
		peripheral[:strings.Index(peripheral, "<fields>")] + peripheral[strings.Index(peripheral, "</fields>")+len("</fields>"):],
		strings.Replace(peripheral, "<resetValue>0x00000000</resetValue>", "", 1),
		strings.Replace(peripheral, "<description>Enable &lt;timer&gt;</description>", "", 1),
		peripheral[:strings.Index(peripheral, "<field>")] + peripheral[strings.Index(peripheral, "</field>")+len("</field>"):],
		peripheral[:strings.Index(peripheral, "<register>")] + peripheral[strings.Index(peripheral, "</register>")+len("</register>"):],
	}
	for _, tt := range errorTests {
		t.Run(tt, func(t *testing.T) {
			w := &bytes.Buffer{}
			err := Minify(minify.New(), w, bytes.NewBufferString(tt), nil)
			test.That(t, errors.Is(err, ErrMalformed), "must be a malformed input error:", err)
			test.T(t, w.Len(), 0)
		})
	}
}

func TestSVDMissingElement(t *testing.T) {
	var missingTests = []struct {
		svd      string
		expected string
	}{
		{peripheral[:strings.Index(peripheral, "<interrupt>")] + peripheral[strings.Index(peripheral, "<registers>"):], "<peripheral> has no <interrupt>"},
		{peripheral[:strings.Index(peripheral, "<fields>")] + peripheral[strings.Index(peripheral, "</fields>")+len("</fields>"):], "<register> has no <fields>"},
		{strings.Replace(peripheral, "<value>4</value>", "", 1), "<interrupt> has no <value>"},
	}
	for _, tt := range missingTests {
		t.Run(tt.expected, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.svd))
			test.That(t, errors.Is(err, ErrMalformed), err)
			test.That(t, err != nil && strings.Contains(err.Error(), tt.expected), "expected", tt.expected, "in", err)
		})
	}
}

func TestSVDEmptyElements(t *testing.T) {
	// present but empty elements are valid
	svd := `<peripheral><name>P</name><description/><groupName></groupName><baseAddress/>
<interrupt><name/><description/><value>0</value></interrupt>
<registers><register><name>R</name><displayName/><description/><resetValue/>
<fields><field><name>F</name><description/></field></fields></register></registers></peripheral>`
	expected := `{"name":"P","description":"","groupName":"","baseAddress":"","interrupt":{"name":"","description":"","value":0},"registers":{"register":[{"name":"R","displayName":"","description":"","resetValue":"","fields":{"field":[{"name":"F","description":""}]}}]}}`

	w := &bytes.Buffer{}
	err := Minify(minify.New(), w, bytes.NewBufferString(svd), nil)
	test.Minify(t, svd, err, w.String(), expected)
}

func TestReaderErrors(t *testing.T) {
	err := Minify(minify.New(), &bytes.Buffer{}, test.NewErrorReader(0), nil)
	test.T(t, err, test.ErrPlain, "return error at first read")
}

func TestWriterErrors(t *testing.T) {
	err := Minify(minify.New(), test.NewErrorWriter(0), bytes.NewBufferString(peripheral), nil)
	test.T(t, err, test.ErrPlain, "return error at first write")
}

func TestCollapseWhitespace(t *testing.T) {
	var collapseTests = []struct {
		s        string
		expected string
	}{
		{"", ""},
		{"a b", "a b"},
		{"a  b", "a b"},
		{"a\nb", "a b"},
		{"a\tb", "a\tb"},
		{"a\r\nb", "a b"},
		{"a\n\n  b", "a b"},
		{"  lead  trail  ", "lead trail"},
		{"a  b", "a b"},
	}
	for _, tt := range collapseTests {
		t.Run(tt.s, func(t *testing.T) {
			test.String(t, collapseWhitespace(tt.s), tt.expected)
		})
	}
}

func FuzzMinify(f *testing.F) {
	f.Add([]byte(peripheral))
	f.Add([]byte("<peripheral><name>A</name></peripheral>"))
	f.Add([]byte("<peripheral><interrupt><value>x</value></interrupt></peripheral>"))

	m := minify.New()
	f.Fuzz(func(t *testing.T, data []byte) {
		w := &bytes.Buffer{}
		if err := Minify(m, w, bytes.NewReader(data), nil); err != nil {
			test.That(t, errors.Is(err, ErrMalformed), "unexpected error", err)
			test.T(t, w.Len(), 0, "no output on error")
		}
	})
}
