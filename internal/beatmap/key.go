package beatmap

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// KeyKind identifies which identifier space a Key belongs to.
type KeyKind int

const (
	kindUnknown KeyKind = iota
	// KindHash is a canonical content hash.
	KindHash
	// KindExternalKey is an identifier assigned by the remote catalog.
	KindExternalKey

	numKeyKinds
)

const (
	hashTag        = "hash"
	externalKeyTag = "key"
	tagSeparator   = ":"
)

// KeyKinds returns every declared kind, in declaration order.
func KeyKinds() []KeyKind {
	kinds := make([]KeyKind, 0, numKeyKinds-1)
	for k := kindUnknown + 1; k < numKeyKinds; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

// Tag returns the kind's encoding tag, or "" for an unknown kind.
func (k KeyKind) Tag() string {
	switch k {
	case KindHash:
		return hashTag
	case KindExternalKey:
		return externalKeyTag
	default:
		return ""
	}
}

func (k KeyKind) String() string {
	if tag := k.Tag(); tag != "" {
		return tag
	}
	return fmt.Sprintf("KeyKind(%d)", int(k))
}

// Key is a lookup key. The zero Key is invalid.
type Key struct {
	Kind  KeyKind
	Value string
}

// HashKey builds a Key for a content hash.
func HashKey(hash string) Key {
	return Key{Kind: KindHash, Value: Normalize(hash)}
}

// ExternalKey builds a Key for a catalog key.
func ExternalKey(key string) Key {
	return Key{Kind: KindExternalKey, Value: Normalize(key)}
}

// Normalize trims and uppercases an identifier. Hashes and external keys are
// compared only in this form.
func Normalize(value string) string {
	return cases.Upper(language.Und).String(strings.TrimSpace(value))
}

// Valid reports whether the key has a known kind.
func (k Key) Valid() bool {
	return k.Kind.Tag() != ""
}

// Encode returns the stable string form "<tag>:<UPPERCASE VALUE>". Keys that
// differ only in case encode identically.
func (k Key) Encode() string {
	return k.Kind.Tag() + tagSeparator + Normalize(k.Value)
}

func (k Key) String() string {
	return k.Encode()
}

// Equal reports whether two keys encode identically.
func (k Key) Equal(other Key) bool {
	return k.Encode() == other.Encode()
}

// ParseKey decodes the output of Encode. The tag is matched case-insensitively.
func ParseKey(encoded string) (Key, error) {
	tag, value, ok := strings.Cut(strings.TrimSpace(encoded), tagSeparator)
	if !ok {
		return Key{}, fmt.Errorf("parse key %q: missing %q separator", encoded, tagSeparator)
	}
	value = Normalize(value)
	if value == "" {
		return Key{}, fmt.Errorf("parse key %q: empty value", encoded)
	}
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case hashTag:
		return Key{Kind: KindHash, Value: value}, nil
	case externalKeyTag:
		return Key{Kind: KindExternalKey, Value: value}, nil
	default:
		return Key{}, fmt.Errorf("parse key %q: unknown kind %q", encoded, tag)
	}
}

// MarshalText implements encoding.TextMarshaler using Encode.
func (k Key) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("marshal key: unknown kind %s", k.Kind)
	}
	return []byte(k.Encode()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler using ParseKey.
func (k *Key) UnmarshalText(text []byte) error {
	parsed, err := ParseKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
