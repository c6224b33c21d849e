// Package compress frames tablet pages with an optional block codec.
//
// Frame layout: [codec uint8][uncompressed uint32][compressed uint32][data].
// A compressed size of 0 means the payload is stored raw, either because the
// column is uncompressed or because compression did not pay off.
package compress

import (
	"encoding/binary"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/hupe1980/colstore/types"
)

const headerSize = 9

// maxRatio is the compressed/raw ratio above which the raw bytes are kept.
const maxRatio = 0.9

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// Encode appends the framed form of data to dst.
func Encode(dst, data []byte, c types.Compression) ([]byte, error) {
	var packed []byte
	switch c {
	case types.CompressionNone:
	case types.CompressionSnappy:
		packed = snappy.Encode(nil, data)
	case types.CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, errors.Wrap(err, "lz4 compress")
		}
		packed = buf[:n]
	case types.CompressionZstd:
		enc := getZstdEncoder()
		packed = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, errors.Newf("unknown compression %d", c)
	}

	if len(packed) == 0 || float64(len(packed)) > float64(len(data))*maxRatio {
		packed = nil
	}
	dst = append(dst, byte(c))
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(data)))
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(packed)))
	if packed == nil {
		return append(dst, data...), nil
	}
	return append(dst, packed...), nil
}

// Decode returns the raw payload of a frame written by Encode.
// The result may alias frame when the payload was stored raw.
func Decode(frame []byte) ([]byte, error) {
	if len(frame) < headerSize {
		return nil, errors.Newf("frame too small: %d bytes", len(frame))
	}
	c := types.Compression(frame[0])
	rawSize := binary.LittleEndian.Uint32(frame[1:])
	packedSize := binary.LittleEndian.Uint32(frame[5:])
	body := frame[headerSize:]

	if packedSize == 0 {
		if uint32(len(body)) < rawSize {
			return nil, errors.Newf("frame truncated: want %d raw bytes, have %d", rawSize, len(body))
		}
		return body[:rawSize], nil
	}
	if uint32(len(body)) < packedSize {
		return nil, errors.Newf("frame truncated: want %d packed bytes, have %d", packedSize, len(body))
	}
	body = body[:packedSize]

	var out []byte
	switch c {
	case types.CompressionSnappy:
		var err error
		if out, err = snappy.Decode(make([]byte, rawSize), body); err != nil {
			return nil, errors.Wrap(err, "snappy decompress")
		}
	case types.CompressionLZ4:
		out = make([]byte, rawSize)
		n, err := lz4.UncompressBlock(body, out)
		if err != nil {
			return nil, errors.Wrap(err, "lz4 decompress")
		}
		out = out[:n]
	case types.CompressionZstd:
		dec := getZstdDecoder()
		var err error
		out, err = dec.DecodeAll(body, make([]byte, 0, rawSize))
		zstdDecoderPool.Put(dec)
		if err != nil {
			return nil, errors.Wrap(err, "zstd decompress")
		}
	default:
		return nil, errors.Newf("unknown compression %d", c)
	}
	if uint32(len(out)) != rawSize {
		return nil, errors.Newf("decompressed size mismatch: want %d, got %d", rawSize, len(out))
	}
	return out, nil
}
