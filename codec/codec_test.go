package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Name    string   `json:"name"`
	Region  uint64   `json:"region"`
	Columns []string `json:"columns"`
}

func TestCodec_EncodeDecode(t *testing.T) {
	in := record{Name: "orders", Region: 12, Columns: []string{"id", "price"}}
	for _, c := range []Codec{JSON{}, GoJSON{}, nil} {
		data, err := Encode(c, in)
		require.NoError(t, err)

		var out record
		require.NoError(t, Decode(data, &out))
		assert.Equal(t, in, out)
	}
}

func TestCodec_DecodeSelectsWriterCodec(t *testing.T) {
	data, err := Encode(JSON{}, record{Name: "a"})
	require.NoError(t, err)
	assert.Equal(t, "json", string(data[1:5]))

	var out record
	require.NoError(t, Decode(data, &out))
	assert.Equal(t, "a", out.Name)
}

func TestCodec_DecodeErrors(t *testing.T) {
	var out record
	require.Error(t, Decode(nil, &out))
	require.Error(t, Decode([]byte{9, 'x'}, &out))
	require.Error(t, Decode([]byte{3, 'x', 'm', 'l', '{', '}'}, &out))
}

func TestByName(t *testing.T) {
	c, ok := ByName("go-json")
	require.True(t, ok)
	assert.Equal(t, "go-json", c.Name())
	_, ok = ByName("gob")
	assert.False(t, ok)
}

func TestCodec_RejectsUnknownFields(t *testing.T) {
	for _, c := range []Codec{JSON{}, GoJSON{}} {
		var out record
		err := c.Unmarshal([]byte(`{"name":"a","owner":"b"}`), &out)
		assert.Error(t, err, c.Name())
	}
}
