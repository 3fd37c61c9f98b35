// Package vectorx holds the float32 vector math and the storage codec for
// enrolled object embeddings.
package vectorx

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
)

// codecVersion is the first field of every encoded vector.
const codecVersion = 1

// ErrCorruptVector is returned by Decode for bytes that are not a vector
// written by Encode.
var ErrCorruptVector = errors.New("corrupt vector encoding")

type envelope struct {
	Version int       `cbor:"1,keyasint"`
	Dim     int       `cbor:"2,keyasint"`
	Values  []float32 `cbor:"3,keyasint"`
}

var (
	encMode     cbor.EncMode
	decMode     cbor.DecMode
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("vectorx: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("vectorx: CBOR decoder initialization failed: " + err.Error())
	}

	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("vectorx: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("vectorx: zstd decoder initialization failed: " + err.Error())
	}
}

// Encode serializes v as deterministic CBOR and compresses it with zstd.
// A nil or empty vector encodes to nil so it maps onto a NULL column.
func Encode(v []float32) ([]byte, error) {
	if len(v) == 0 {
		return nil, nil
	}

	raw, err := encMode.Marshal(envelope{Version: codecVersion, Dim: len(v), Values: v})
	if err != nil {
		return nil, fmt.Errorf("vector encode: %w", err)
	}
	return zstdEncoder.EncodeAll(raw, nil), nil
}

// Decode reverses Encode. Nil input decodes to a nil vector.
func Decode(b []byte) ([]float32, error) {
	if len(b) == 0 {
		return nil, nil
	}

	raw, err := zstdDecoder.DecodeAll(b, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: zstd: %v", ErrCorruptVector, err)
	}

	var env envelope
	if err := decMode.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: cbor: %v", ErrCorruptVector, err)
	}
	if env.Version != codecVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptVector, env.Version)
	}
	if env.Dim != len(env.Values) {
		return nil, fmt.Errorf("%w: dim %d, got %d values", ErrCorruptVector, env.Dim, len(env.Values))
	}
	return env.Values, nil
}
