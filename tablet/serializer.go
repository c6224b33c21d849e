package tablet

import (
	"encoding/binary"

	"github.com/hupe1980/colstore/internal/compress"
	"github.com/hupe1980/colstore/internal/errs"
	"github.com/hupe1980/colstore/types"
	"github.com/hupe1980/colstore/values"
)

const bitmapBytes = Size / 8

// Marshal serializes the tablet. The page is
// [occupied bitmap][null bitmap][payloads of occupied non-null slots],
// boolean tablets store their values as a third bitmap, and the whole page
// is wrapped in a compression frame.
func Marshal(t *Tablet, c types.Compression) ([]byte, error) {
	page := make([]byte, 0, 2*bitmapBytes+Size*2)
	page = appendBitmap(page, &t.occupied)
	page = appendBitmap(page, &t.nulls)

	if t.typ.Kind == types.KindBoolean {
		var vals bitmap
		for i := range Size {
			if t.occupied.get(i) && !t.nulls.get(i) && t.values[i].B {
				vals.set(i)
			}
		}
		page = appendBitmap(page, &vals)
	} else {
		for i := t.Next(0); i >= 0; i = t.Next(i + 1) {
			if t.nulls.get(i) {
				continue
			}
			var err error
			if page, err = values.AppendPayload(page, t.values[i], t.typ); err != nil {
				return nil, err
			}
		}
	}
	return compress.Encode(nil, page, c)
}

// Unmarshal decodes a tablet of type typ written by Marshal.
func Unmarshal(data []byte, typ types.Type) (*Tablet, error) {
	page, err := compress.Decode(data)
	if err != nil {
		return nil, errs.AsCorruption(err, "tablet frame")
	}
	if len(page) < 2*bitmapBytes {
		return nil, errs.Corruptionf("tablet page too small: %d bytes", len(page))
	}
	t := New(typ)
	page = readBitmap(page, &t.occupied)
	page = readBitmap(page, &t.nulls)

	if typ.Kind == types.KindBoolean {
		if len(page) < bitmapBytes {
			return nil, errs.Corruptionf("boolean tablet missing value bitmap")
		}
		var vals bitmap
		page = readBitmap(page, &vals)
		for i := range Size {
			if t.occupied.get(i) && !t.nulls.get(i) {
				t.values[i] = types.Bool(vals.get(i))
			}
		}
	} else {
		for i := t.Next(0); i >= 0; i = t.Next(i + 1) {
			if t.nulls.get(i) {
				continue
			}
			var v types.Value
			if v, page, err = values.ReadPayload(page, typ); err != nil {
				return nil, err
			}
			t.values[i] = v
		}
	}
	if len(page) != 0 {
		return nil, errs.Corruptionf("%d trailing bytes in tablet page", len(page))
	}
	return t, nil
}

func appendBitmap(dst []byte, b *bitmap) []byte {
	for _, w := range b {
		dst = binary.LittleEndian.AppendUint64(dst, w)
	}
	return dst
}

func readBitmap(src []byte, b *bitmap) []byte {
	for i := range b {
		b[i] = binary.LittleEndian.Uint64(src[8*i:])
	}
	return src[bitmapBytes:]
}
