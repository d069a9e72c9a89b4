package dag

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/mr-tron/base58"

	"github.com/blockclique/blockclique-go/crypto/hash"
	"github.com/blockclique/blockclique-go/model/encoding/cbor"
)

// Identifier represents a 32-byte unique identifier for an entity.
type Identifier [hash.HashLen]byte

// ZeroID is the lowest value in the 32-byte ID space.
var ZeroID = Identifier{}

// IdentifierFromString parses the base58 text form of an identifier.
func IdentifierFromString(s string) (Identifier, error) {
	var id Identifier
	b, err := base58.Decode(s)
	if err != nil {
		return id, fmt.Errorf("could not decode identifier %q: %w", s, err)
	}
	if len(b) != len(id) {
		return id, fmt.Errorf("identifier has wrong length (%d != %d)", len(b), len(id))
	}
	copy(id[:], b)
	return id, nil
}

// MustIdentifierFromString is IdentifierFromString that panics on failure.
func MustIdentifierFromString(s string) Identifier {
	id, err := IdentifierFromString(s)
	if err != nil {
		panic(err)
	}
	return id
}

// String returns the base58 string representation of the identifier.
func (id Identifier) String() string {
	return base58.Encode(id[:])
}

// Format lets the identifier be printed with the %v and %s verbs.
func (id Identifier) Format(state fmt.State, verb rune) {
	switch verb {
	case 'x':
		_, _ = fmt.Fprintf(state, "%x", id[:])
	default:
		_, _ = state.Write([]byte(id.String()))
	}
}

// Compare orders identifiers by their bytes.
func (id Identifier) Compare(other Identifier) int {
	return bytes.Compare(id[:], other[:])
}

// Less reports whether id sorts before other.
func (id Identifier) Less(other Identifier) bool {
	return id.Compare(other) < 0
}

// MakeID creates an ID from the canonical encoding of an entity.
func MakeID(entity interface{}) Identifier {
	return Identifier(hash.Sum256(cbor.NewEncoder().MustEncode(entity)))
}

// IdentifierList is a list of identifiers.
type IdentifierList []Identifier

// Len returns length of the IdentiferList in the number of stored identifiers.
// It satisfies the sort.Interface making the IdentifierList sortable.
func (il IdentifierList) Len() int {
	return len(il)
}

// Less returns true if element i in the IdentifierList is less than j based on its identifier.
// Otherwise it returns false.
// It satisfies the sort.Interface making the IdentifierList sortable.
func (il IdentifierList) Less(i, j int) bool {
	return il[i].Less(il[j])
}

// Swap swaps the element i and j in the IdentifierList.
// It satisfies the sort.Interface making the IdentifierList sortable.
func (il IdentifierList) Swap(i, j int) {
	il[j], il[i] = il[i], il[j]
}

// Sorted returns a sorted copy of the list.
func (il IdentifierList) Sorted() IdentifierList {
	dup := make(IdentifierList, len(il))
	copy(dup, il)
	sort.Sort(dup)
	return dup
}

// Contains returns whether the list contains the given identifier.
func (il IdentifierList) Contains(target Identifier) bool {
	for _, id := range il {
		if id == target {
			return true
		}
	}
	return false
}

// Strings returns the text form of every identifier in the list.
func (il IdentifierList) Strings() []string {
	list := make([]string, 0, len(il))
	for _, id := range il {
		list = append(list, id.String())
	}
	return list
}

// Address identifies an account: the hash of its compressed public key.
type Address [hash.HashLen]byte

// String returns the base58 string representation of the address.
func (a Address) String() string {
	return base58.Encode(a[:])
}

// Bytes returns the raw address.
func (a Address) Bytes() []byte {
	return a[:]
}
