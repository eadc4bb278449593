package types

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

var (
	// Cbor is the codec used for stored records and signed request payloads.
	// Encoding is deterministic (core deterministic encoding) so the same
	// value always produces the same bytes.
	Cbor = newCborCodec()
)

type cborCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

func newCborCodec() cborCodec {
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Errorf("creating CBOR encoder: %w", err))
	}
	dec, err := cbor.DecOptions{
		DupMapKey:        cbor.DupMapKeyEnforcedAPF,
		MaxArrayElements: 1 << 24,
	}.DecMode()
	if err != nil {
		panic(fmt.Errorf("creating CBOR decoder: %w", err))
	}
	return cborCodec{enc: enc, dec: dec}
}

func (c cborCodec) Marshal(v any) ([]byte, error) {
	return c.enc.Marshal(v)
}

func (c cborCodec) Unmarshal(data []byte, v any) error {
	return c.dec.Unmarshal(data, v)
}
