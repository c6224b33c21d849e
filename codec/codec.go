// Package codec encodes catalogue records.
//
// Records are self-describing: Encode prefixes the payload with the codec
// name so a store written with one codec still opens when the configured
// default changes.
package codec

import (
	"github.com/cockroachdb/errors"
)

// Codec encodes and decodes values. Implementations must be safe for
// concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// Default is the codec used for newly written records.
var Default Codec = GoJSON{}

// ByName returns a built-in codec by its stable name.
func ByName(name string) (Codec, bool) {
	switch name {
	case "json":
		return JSON{}, true
	case "go-json":
		return GoJSON{}, true
	default:
		return nil, false
	}
}

// Encode marshals v with c and prefixes the record with the codec name.
func Encode(c Codec, v any) ([]byte, error) {
	if c == nil {
		c = Default
	}
	payload, err := c.Marshal(v)
	if err != nil {
		return nil, errors.Wrapf(err, "codec %s", c.Name())
	}
	name := c.Name()
	out := make([]byte, 0, 1+len(name)+len(payload))
	out = append(out, byte(len(name)))
	out = append(out, name...)
	return append(out, payload...), nil
}

// Decode unmarshals a record written by Encode into v.
func Decode(data []byte, v any) error {
	if len(data) == 0 || len(data) < 1+int(data[0]) {
		return errors.Newf("record too short: %d bytes", len(data))
	}
	name := string(data[1 : 1+data[0]])
	c, ok := ByName(name)
	if !ok {
		return errors.Newf("unknown codec %q", name)
	}
	return errors.Wrapf(c.Unmarshal(data[1+data[0]:], v), "codec %s", name)
}
