// Package compression wraps zstd for pack data records.
package compression

import (
	"github.com/klauspost/compress/zstd"
)

// minCompressSize skips compression for records too small to benefit.
const minCompressSize = 128

type Codec struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func NewCodec(level int) (*Codec, error) {
	var encoderLevel zstd.EncoderLevel
	switch level {
	case 1:
		encoderLevel = zstd.SpeedFastest
	case 2:
		encoderLevel = zstd.SpeedDefault
	case 3:
		encoderLevel = zstd.SpeedBetterCompression
	default:
		encoderLevel = zstd.SpeedDefault
	}

	encoder, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(encoderLevel),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return nil, err
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}

	return &Codec{
		encoder: encoder,
		decoder: decoder,
	}, nil
}

// Compress returns the zstd-compressed form of data and true, or data
// unchanged and false when compression does not pay off.
func (c *Codec) Compress(data []byte) ([]byte, bool) {
	if len(data) < minCompressSize {
		return data, false
	}

	compressed := c.encoder.EncodeAll(data, make([]byte, 0, len(data)))

	if len(compressed) >= len(data) {
		return data, false
	}

	return compressed, true
}

// Decompress inflates a record that was stored compressed. A decode
// failure means the record is corrupt; it is reported as an error, never
// masked by handing back the raw input.
func (c *Codec) Decompress(data []byte) ([]byte, error) {
	return c.decoder.DecodeAll(data, nil)
}

func (c *Codec) Close() error {
	if c.encoder != nil {
		c.encoder.Close()
	}
	if c.decoder != nil {
		c.decoder.Close()
	}
	return nil
}
