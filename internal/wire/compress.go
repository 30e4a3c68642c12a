package wire

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// World-state blobs (ClientWorld/ServerWorld) are the only payloads large
// enough to regularly need chunking, and compress well since most of the
// state is near-static entity fields. We keep one shared encoder/decoder
// pair: zstd's are safe for concurrent use and expensive to construct.
var (
	worldEncoder   *zstd.Encoder
	worldDecoder   *zstd.Decoder
	worldCodecOnce sync.Once
	worldCodecErr  error
)

func initWorldCodec() {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		worldCodecErr = err
		return
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		worldCodecErr = err
		return
	}
	worldEncoder = enc
	worldDecoder = dec
}

// CompressWorldState compresses a world-state blob before it is handed to
// EncodePayload/BuildChunks. Callers decide whether compressing was worth
// it (CompressWorldState never makes small blobs larger in a way that
// matters, but the caller may still skip it under MaxPayload).
func CompressWorldState(raw []byte) ([]byte, error) {
	worldCodecOnce.Do(initWorldCodec)
	if worldCodecErr != nil {
		return nil, fmt.Errorf("wire: zstd codec unavailable: %w", worldCodecErr)
	}
	return worldEncoder.EncodeAll(raw, make([]byte, 0, len(raw))), nil
}

// DecompressWorldState reverses CompressWorldState after chunk reassembly.
func DecompressWorldState(compressed []byte) ([]byte, error) {
	worldCodecOnce.Do(initWorldCodec)
	if worldCodecErr != nil {
		return nil, fmt.Errorf("wire: zstd codec unavailable: %w", worldCodecErr)
	}
	out, err := worldDecoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("wire: zstd decode: %w", err)
	}
	return out, nil
}
