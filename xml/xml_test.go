package xml

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/svdmin/minify"
	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/test"
)

func TestXML(t *testing.T) {
	xmlTests := []struct {
		xml      string
		expected string
	}{
		{"", "\n"},
		{"<!-- comment -->", "\n"},
		{"<x></x>", "a=x\n<a></a>"},
		{"<a><b>x</b></a>", "a=a,b=b\n<a><b>x</b></a>"},
		{"<xml><foo><bar>baz</bar></foo></xml>", "a=xml,b=foo,c=bar\n<a><b><c>baz</c></b></a>"},
		{"\n  <xml>\n    <foo>\n      <bar>baz</bar>\n    </foo>\n  </xml>\n", "a=xml,b=foo,c=bar\n<a><b><c>baz</c></b></a>"},
		{"<a><b/><b/><c/><b></b></a>", "a=a,b=b,c=c\n<a><b/><b/><c/><b></b></a>"},
		{"<a><b>x</b><a>y</a></a>", "a=a,b=b\n<a><b>x</b><a>y</a></a>"},
		{"<a/>text", "a=a\n<a/>text"},
		{"<x a=\"b\" c='d'>t</x>", "a=x\n<a>t</a>"},
		{"<?xml version=\"1.0\" encoding=\"utf-8\"?><!DOCTYPE x SYSTEM \"x.dtd\"><x><!--c-->t</x>", "a=x\n<a>t</a>"},
		{"<foo:bar>t</foo:bar>", "a=foo:bar\n<a>t</a>"},
		{"<a></ a>", "a=a\n<a></a>"},

		// text
		{"<x>a b</x>", "a=x\n<a>a b</a>"},
		{"<x>a  b</x>", "a=x\n<a>ab</a>"},
		{"<x>a\tb</x>", "a=x\n<a>a b</a>"},
		{"<x>a\r\nb</x>", "a=x\n<a>a b</a>"},
		{"<x>a\n\n  b</x>", "a=x\n<a>ab</a>"},
		{"<x> \n\t </x>", "a=x\n<a></a>"},
		{"<x>  lead and trail  </x>", "a=x\n<a>lead and trail</a>"},
		{"<x>a &amp; b &lt; c</x>", "a=x\n<a>a &amp; b &lt; c</a>"},
		{"<x>a]]  >b</x>", "a=x\n<a>a]]&gt;b</a>"},

		// CDATA
		{"<x><![CDATA[<b>]]></x>", "a=x\n<a>&lt;b></a>"},
		{"<x><![CDATA[<<<<<]]></x>", "a=x\n<a><![CDATA[<<<<<]]></a>"},
		{"<x><![CDATA[&]]></x>", "a=x\n<a>&amp;</a>"},
		{"<x><![CDATA[ a  ]]></x>", "a=x\n<a>a</a>"},
		{"<x><![CDATA[  ]]></x>", "a=x\n<a></a>"},
		{"<x><![CDATA[<<<]]  >]]></x>", "a=x\n<a>&lt;&lt;&lt;]]&gt;</a>"},

		// ignored subtrees
		{"<root><baseAddress>0x40</baseAddress><x>keep</x></root>", "a=root,b=x\n<a><b>keep</b></a>"},
		{"<r><addressBlock><offset>0</offset><usage>registers</usage></addressBlock><n>x</n></r>", "a=r,b=n\n<a><b>x</b></a>"},
		{"<a><size><size>1</size><b>2</b></size><c/></a>", "a=a,b=c\n<a><b/></a>"},
		{"<a><size/><b/></a>", "a=a,b=b\n<a><b/></a>"},
		{"<a><access><a>x</a></access><a>y</a></a>", "a=a\n<a><a>y</a></a>"},
		{"<bitWidth>3</bitWidth>", "\n"},
	}

	m := minify.New()
	for _, tt := range xmlTests {
		t.Run(tt.xml, func(t *testing.T) {
			r := bytes.NewBufferString(tt.xml)
			w := &bytes.Buffer{}
			err := Minify(m, w, r, nil)
			test.Minify(t, tt.xml, err, w.String(), tt.expected)
		})
	}
}

func TestXMLErrors(t *testing.T) {
	errorTests := []struct {
		xml string
		err error
	}{
		{"<a></b>", ErrMalformed},
		{"<a><b></a></b>", ErrMalformed},
		{"<a>", ErrMalformed},
		{"</a>", ErrMalformed},
		{"<a", ErrMalformed},
		{"<a x=\"y\"", ErrMalformed},
		{"<a>x\x00y</a>", ErrMalformed},
		{"<a><size></a>", ErrMalformed},
		{"<a>\xff</a>", ErrEncoding},
		{"<a\xff></a\xff>", ErrEncoding},
		{"<a>" + manyTags(26) + "</a>", ErrCapacity},
	}

	m := minify.New()
	for _, tt := range errorTests {
		t.Run(tt.xml, func(t *testing.T) {
			w := &bytes.Buffer{}
			err := Minify(m, w, bytes.NewBufferString(tt.xml), nil)
			test.That(t, errors.Is(err, tt.err), "expected", tt.err, "got", err)
			test.T(t, w.Len(), 0, "no output on error")
		})
	}
}

func TestErrorPosition(t *testing.T) {
	err := Minify(minify.New(), &bytes.Buffer{}, bytes.NewBufferString("<a>\n<b>\n</c>"), nil)
	var perr *parse.Error
	if !errors.As(err, &perr) {
		test.Fail(t, "expected parse error, got", err)
		return
	}
	line, _, _ := perr.Position()
	test.T(t, line, 3)
}

func manyTags(n int) string {
	sb := strings.Builder{}
	for i := 0; i < n; i++ {
		sb.WriteString("<t" + strconv.Itoa(i) + "/>")
	}
	return sb.String()
}

func TestCapacity(t *testing.T) {
	m := minify.New()

	// 26 distinct tags fill the alphabet exactly
	s, err := minifyString(m, DefaultMinifier, "<r>"+manyTags(25)+"</r>")
	test.Error(t, err)
	test.That(t, strings.HasPrefix(s, "a=r,b=t0,c=t1,"), s)
	test.That(t, strings.Contains(s, ",z=t24\n"), s)

	// ignored tags do not take up symbols
	_, err = minifyString(m, DefaultMinifier, "<r>"+manyTags(25)+"<size/><access>x</access></r>")
	test.Error(t, err)

	_, err = minifyString(m, DefaultMinifier, "<r>"+manyTags(26)+"</r>")
	test.That(t, errors.Is(err, ErrCapacity), "27 distinct tags must exceed the alphabet")
}

func TestAlphabet(t *testing.T) {
	m := minify.New()

	s, err := minifyString(m, &Minifier{Alphabet: "xY"}, "<a><b/></a>")
	test.Error(t, err)
	test.String(t, s, "x=a,Y=b\n<x><Y/></x>")

	_, err = minifyString(m, &Minifier{Alphabet: "xy"}, "<a><b><c/></b></a>")
	test.That(t, errors.Is(err, ErrCapacity), "three tags must exceed two symbols")

	for _, alphabet := range []string{"xx", "a1", "a-", "é"} {
		_, err = minifyString(m, &Minifier{Alphabet: alphabet}, "<a/>")
		test.That(t, errors.Is(err, ErrAlphabet), "alphabet", alphabet, "must be rejected")
	}
}

func TestDeterminism(t *testing.T) {
	doc := `<device><peripheral><name>GPIO</name><description>General
		purpose  I/O</description><baseAddress>0x40000000</baseAddress>
		<registers><register><name>CTRL</name><size>32</size></register>
		<register><name>DATA</name></register></registers></peripheral></device>`

	m := minify.New()
	s1, err := minifyString(m, DefaultMinifier, doc)
	test.Error(t, err)
	s2, err := minifyString(m, DefaultMinifier, doc)
	test.Error(t, err)
	test.String(t, s1, s2)
	test.String(t, s1, "a=device,b=peripheral,c=name,d=description,e=registers,f=register\n<a><b><c>GPIO</c><d>GeneralpurposeI/O</d><e><f><c>CTRL</c></f><f><c>DATA</c></f></e></b></a>")
}

func TestReaderErrors(t *testing.T) {
	r := test.NewErrorReader(0)
	w := &bytes.Buffer{}
	err := Minify(minify.New(), w, r, nil)
	test.T(t, err, test.ErrPlain, "return error at first read")
}

func TestWriterErrors(t *testing.T) {
	errorTests := []int{0, 1, 2}

	m := minify.New()
	for _, n := range errorTests {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			// writes:                  0    1  2
			r := bytes.NewBufferString(`<a><b>text</b></a>`)
			w := test.NewErrorWriter(n)
			test.T(t, Minify(m, w, r, nil), test.ErrPlain)
		})
	}
}

func TestRewriterFinished(t *testing.T) {
	z := parse.NewInputString("")
	rw := newRewriter(z, NewSymbolTable(DefaultAlphabet))
	test.Error(t, rw.step(Token{TokenType: EOFToken}))
	test.T(t, rw.step(Token{TokenType: StartTagToken, Data: []byte("a")}), errFinished)
}

func minifyString(m *minify.M, o *Minifier, s string) (string, error) {
	w := &bytes.Buffer{}
	err := o.Minify(m, w, strings.NewReader(s), nil)
	return w.String(), err
}

////////////////////////////////////////////////////////////////

func ExampleMinify() {
	m := minify.New()
	m.AddFuncRegexp(regexp.MustCompile("[/+]xml$"), Minify)

	if err := m.Minify("text/xml", os.Stdout, os.Stdin); err != nil {
		fmt.Println("minify.Minify:", err)
	}
}
