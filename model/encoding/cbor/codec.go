package cbor

import (
	"fmt"

	cborlib "github.com/fxamacker/cbor/v2"

	"github.com/blockclique/blockclique-go/model/encoding"
)

// EncMode is the canonical encoding mode. Map keys are sorted and integers use
// their shortest form, so equal values always produce equal bytes, which is
// what content hashing relies on.
var EncMode = func() cborlib.EncMode {
	options := cborlib.CoreDetEncOptions()
	options.Time = cborlib.TimeRFC3339Nano
	encMode, err := options.EncMode()
	if err != nil {
		panic(err)
	}
	return encMode
}()

// DecMode bounds the resources a decoder may use on untrusted input.
var DecMode = func() cborlib.DecMode {
	decMode, err := cborlib.DecOptions{
		MaxArrayElements: 1_000_000,
		MaxMapPairs:      1_000_000,
		MaxNestedLevels:  32,
	}.DecMode()
	if err != nil {
		panic(err)
	}
	return decMode
}()

var _ encoding.Encoder = (*Encoder)(nil)

// Encoder is the canonical CBOR encoder.
type Encoder struct{}

// NewEncoder returns a canonical CBOR encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

func (e *Encoder) Encode(val interface{}) ([]byte, error) {
	b, err := EncMode.Marshal(val)
	if err != nil {
		return nil, fmt.Errorf("could not encode cbor: %w", err)
	}
	return b, nil
}

func (e *Encoder) Decode(b []byte, val interface{}) error {
	err := DecMode.Unmarshal(b, val)
	if err != nil {
		return fmt.Errorf("could not decode cbor: %w", err)
	}
	return nil
}

func (e *Encoder) MustEncode(val interface{}) []byte {
	b, err := e.Encode(val)
	if err != nil {
		panic(err)
	}
	return b
}

func (e *Encoder) MustDecode(b []byte, val interface{}) {
	err := e.Decode(b, val)
	if err != nil {
		panic(err)
	}
}
