package storage

import (
	"fmt"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"

	"servicehealth/internal/types"
)

// CompressedSuffix marks zstd-encoded blobs.
const CompressedSuffix = ".zst"

var (
	encoderOnce sync.Once
	encoder     *zstd.Encoder
	decoderOnce sync.Once
	decoder     *zstd.Decoder
)

func getEncoder() *zstd.Encoder {
	encoderOnce.Do(func() {
		// Only fails on invalid options.
		encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault), zstd.WithEncoderConcurrency(1))
	})
	return encoder
}

func getDecoder() *zstd.Decoder {
	decoderOnce.Do(func() {
		decoder, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	})
	return decoder
}

// Compress encodes data as a single zstd frame.
func Compress(data []byte) []byte {
	return getEncoder().EncodeAll(data, make([]byte, 0, len(data)/2))
}

// Decompress decodes a zstd frame. A truncated or corrupt frame is
// malformed input.
func Decompress(data []byte) ([]byte, error) {
	out, err := getDecoder().DecodeAll(data, nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeMalformedInput, fmt.Sprintf("zstd decode: %v", err), err)
	}
	return out, nil
}

// IsCompressedKey reports whether key names a zstd blob.
func IsCompressedKey(key string) bool {
	return strings.HasSuffix(key, CompressedSuffix)
}

// Encode applies the configured archive compression ("none" or "zstd") and
// returns the possibly suffixed key with the encoded body.
func Encode(compression, key string, body []byte) (string, []byte) {
	if compression != "zstd" {
		return key, body
	}
	return key + CompressedSuffix, Compress(body)
}

// Decode reverses Encode based on the key suffix.
func Decode(key string, body []byte) ([]byte, error) {
	if !IsCompressedKey(key) {
		return body, nil
	}
	return Decompress(body)
}
