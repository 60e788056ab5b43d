package db

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/klauspost/compress/zstd"
)

const float32ByteSize = 4

var (
	encoderOnce sync.Once
	encoder     *zstd.Encoder

	decoderPool = sync.Pool{
		New: func() any {
			d, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
			if err != nil {
				// Cannot fail with nil input and default options.
				panic(fmt.Sprintf("failed to create zstd decoder: %v", err))
			}
			return d
		},
	}
)

func sharedEncoder() *zstd.Encoder {
	encoderOnce.Do(func() {
		e, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault), zstd.WithEncoderConcurrency(1))
		if err != nil {
			panic(fmt.Sprintf("failed to create zstd encoder: %v", err))
		}
		encoder = e
	})
	return encoder
}

// EncodeEmbedding packs vec as little-endian float32 and compresses it with
// zstd for the content_items.embedding column.
func EncodeEmbedding(vec []float32) []byte {
	raw := make([]byte, len(vec)*float32ByteSize)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(raw[i*float32ByteSize:], math.Float32bits(v))
	}
	// EncodeAll is safe for concurrent use.
	return sharedEncoder().EncodeAll(raw, make([]byte, 0, len(raw)/2))
}

// DecodeEmbedding reverses EncodeEmbedding.
func DecodeEmbedding(blob []byte) ([]float32, error) {
	if len(blob) == 0 {
		return nil, nil
	}

	d := decoderPool.Get().(*zstd.Decoder)
	defer decoderPool.Put(d)

	raw, err := d.DecodeAll(blob, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress embedding: %w", err)
	}
	if len(raw)%float32ByteSize != 0 {
		return nil, fmt.Errorf("embedding payload length %d is not a multiple of %d", len(raw), float32ByteSize)
	}

	vec := make([]float32, len(raw)/float32ByteSize)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*float32ByteSize:]))
	}
	return vec, nil
}
