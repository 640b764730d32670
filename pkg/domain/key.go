package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Key is a generation-checked handle to one extent slot. The zero value never resolves.
type Key struct {
	index      uint32
	generation uint32
}

// KeyFromParts constructs a key from raw components.
func KeyFromParts(index, generation uint32) Key {
	return Key{index: index, generation: generation}
}

// Index returns the slot index.
func (k Key) Index() uint32 { return k.index }

// Generation returns the slot generation the key was issued for.
func (k Key) Generation() uint32 { return k.generation }

// IsZero reports whether k is the zero key.
func (k Key) IsZero() bool { return k.index == 0 && k.generation == 0 }

// String renders the key as "<index>v<generation>".
func (k Key) String() string {
	return strconv.FormatUint(uint64(k.index), 10) + "v" + strconv.FormatUint(uint64(k.generation), 10)
}

// ParseKey parses the String form of a key.
func ParseKey(s string) (Key, error) {
	idx, gen, ok := strings.Cut(s, "v")
	if !ok {
		return Key{}, NewError(CodeParse, "malformed key %q", s)
	}
	i, err := strconv.ParseUint(idx, 10, 32)
	if err != nil {
		return Key{}, WrapError(CodeParse, err, "malformed key index %q", s)
	}
	g, err := strconv.ParseUint(gen, 10, 32)
	if err != nil {
		return Key{}, WrapError(CodeParse, err, "malformed key generation %q", s)
	}
	return Key{index: uint32(i), generation: uint32(g)}, nil
}

// MarshalText encodes the key in its String form.
func (k Key) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes the String form of a key.
func (k *Key) UnmarshalText(text []byte) error {
	parsed, err := ParseKey(string(text))
	if err != nil {
		return fmt.Errorf("key: %w", err)
	}
	*k = parsed
	return nil
}
