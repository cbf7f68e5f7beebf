package transfer

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadMessage(t *testing.T) {
	serializer := NewJSONSerializer()
	var buf bytes.Buffer

	require.NoError(t, WriteMessage(&buf, serializer, &Message{
		Type:    FetchRequestType,
		Request: &FetchRequest{Token: "secret"},
	}))
	require.NoError(t, WriteMessage(&buf, serializer, &Message{
		Type:   FileHeaderType,
		Header: &FileHeader{Name: "a.txt", Size: 3, Checksum: "abc"},
	}))
	buf.WriteString("raw")

	first, err := ReadMessage(&buf, serializer)
	require.NoError(t, err)
	assert.Equal(t, FetchRequestType, first.Type)
	require.NotNil(t, first.Request)
	assert.Equal(t, "secret", first.Request.Token)
	assert.Nil(t, first.Header)

	second, err := ReadMessage(&buf, serializer)
	require.NoError(t, err)
	require.NotNil(t, second.Header)
	assert.Equal(t, "a.txt", second.Header.Name)

	// file bytes after the header are left untouched
	rest, err := io.ReadAll(&buf)
	require.NoError(t, err)
	assert.Equal(t, "raw", string(rest))
}

func TestReadMessage_Errors(t *testing.T) {
	serializer := NewJSONSerializer()

	t.Run("too large", func(t *testing.T) {
		var buf bytes.Buffer
		var prefix [4]byte
		binary.BigEndian.PutUint32(prefix[:], MaxMessageSize+1)
		buf.Write(prefix[:])
		_, err := ReadMessage(&buf, serializer)
		assert.ErrorIs(t, err, ErrMessageTooLarge)
	})

	t.Run("truncated body", func(t *testing.T) {
		var buf bytes.Buffer
		var prefix [4]byte
		binary.BigEndian.PutUint32(prefix[:], 10)
		buf.Write(prefix[:])
		buf.WriteString("{}")
		_, err := ReadMessage(&buf, serializer)
		assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	})

	t.Run("empty stream", func(t *testing.T) {
		_, err := ReadMessage(&bytes.Buffer{}, serializer)
		assert.ErrorIs(t, err, io.EOF)
	})
}
