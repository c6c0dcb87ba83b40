package server

import (
	"github.com/fxamacker/cbor/v2"
)

// cborCodec carries inspect messages as CBOR. Connect negotiates it with
// the content type application/cbor.
type cborCodec struct{}

func (cborCodec) Name() string { return "cbor" }

func (cborCodec) Marshal(msg any) ([]byte, error) {
	return cbor.Marshal(msg)
}

func (cborCodec) Unmarshal(data []byte, msg any) error {
	return cbor.Unmarshal(data, msg)
}
