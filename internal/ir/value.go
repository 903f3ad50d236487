package ir

import (
	"fmt"
	"slices"
	"strconv"
	"unicode/utf16"
)

// IRValue is a sealed interface over literal payloads.
// Only IRNull, IRString, IRInt, IRBool, IRArray and IRObject implement it.
// Floats are not representable; the wrapper kinds never need them.
type IRValue interface {
	irValue()
}

// IRNull is the null literal.
type IRNull struct{}

func (IRNull) irValue() {}

// IRString is a string literal.
type IRString string

func (IRString) irValue() {}

// IRInt is an integer literal (Int and Long alike).
type IRInt int64

func (IRInt) irValue() {}

// IRBool is a boolean literal.
type IRBool bool

func (IRBool) irValue() {}

// IRArray is an ordered list of values. Used for hashing payloads only.
type IRArray []IRValue

func (IRArray) irValue() {}

// IRObject maps keys to values. Use SortedKeys for deterministic iteration.
type IRObject map[string]IRValue

func (IRObject) irValue() {}

// SortedKeys returns keys in RFC 8785 order (UTF-16 code units).
func (obj IRObject) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 orders strings by UTF-16 code units. Go's native string
// order is by UTF-8 bytes, which differs for supplementary-plane runes.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	for i := 0; i < len(a16) && i < len(b16); i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}

// FormatValue renders a literal in source form.
func FormatValue(v IRValue) string {
	switch val := v.(type) {
	case nil, IRNull:
		return "null"
	case IRString:
		return strconv.Quote(string(val))
	case IRInt:
		return strconv.FormatInt(int64(val), 10)
	case IRBool:
		return strconv.FormatBool(bool(val))
	default:
		return fmt.Sprintf("%v", val)
	}
}
