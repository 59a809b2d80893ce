package xml

import (
	"errors"
	"fmt"
)

// DefaultAlphabet holds the symbols handed out to tag names, in order of first occurrence.
var DefaultAlphabet = []byte("abcdefghijklmnopqrstuvwxyz")

var (
	// ErrCapacity is returned when a document has more distinct tag names than there are symbols in the alphabet.
	ErrCapacity = errors.New("too many distinct tags")

	// ErrAlphabet is returned for an alphabet that is empty, repeats a symbol or has a symbol that cannot start an XML name.
	ErrAlphabet = errors.New("invalid symbol alphabet")
)

// Binding is a single entry of the symbol table.
type Binding struct {
	Symbol byte
	Name   string
}

// SymbolTable maps tag names to single character symbols. A symbol is allocated the first time its tag name is resolved and never rebound.
type SymbolTable struct {
	alphabet []byte
	symbols  map[string]byte
	names    []string
}

// NewSymbolTable returns an empty table that allocates from alphabet.
func NewSymbolTable(alphabet []byte) *SymbolTable {
	return &SymbolTable{
		alphabet: alphabet,
		symbols:  make(map[string]byte, len(alphabet)),
		names:    make([]string, 0, len(alphabet)),
	}
}

// Resolve returns the symbol of name, allocating the next free one when name is new.
func (t *SymbolTable) Resolve(name []byte) (byte, error) {
	if sym, ok := t.symbols[string(name)]; ok { // string conversion is optimized away
		return sym, nil
	}

	i := len(t.names)
	if len(t.alphabet) <= i {
		return 0, fmt.Errorf("%w: all %d symbols in use, cannot allocate one for <%s>", ErrCapacity, len(t.alphabet), name)
	}
	sym := t.alphabet[i]
	t.symbols[string(name)] = sym
	t.names = append(t.names, string(name))
	return sym, nil
}

// Len returns the number of bound tag names.
func (t *SymbolTable) Len() int {
	return len(t.names)
}

// Export returns the bindings ordered by symbol, which is the order of first occurrence.
func (t *SymbolTable) Export() []Binding {
	bindings := make([]Binding, len(t.names))
	for i, name := range t.names {
		bindings[i] = Binding{t.alphabet[i], name}
	}
	return bindings
}

// AppendTo appends the serialized table, as comma separated symbol=name pairs, to dst.
func (t *SymbolTable) AppendTo(dst []byte) []byte {
	for i, name := range t.names {
		if i != 0 {
			dst = append(dst, ',')
		}
		dst = append(dst, t.alphabet[i], '=')
		dst = append(dst, name...)
	}
	return dst
}

func (t *SymbolTable) String() string {
	return string(t.AppendTo(nil))
}

// validAlphabet checks that every symbol of alphabet is unique and may start an XML name.
func validAlphabet(alphabet []byte) error {
	if len(alphabet) == 0 {
		return fmt.Errorf("%w: empty", ErrAlphabet)
	}
	var seen [256]bool
	for _, c := range alphabet {
		if !('a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || c == '_') {
			return fmt.Errorf("%w: symbol %q cannot start a tag name", ErrAlphabet, c)
		} else if seen[c] {
			return fmt.Errorf("%w: duplicate symbol %q", ErrAlphabet, c)
		}
		seen[c] = true
	}
	return nil
}
