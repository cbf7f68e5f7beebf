package transfer

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// MaxMessageSize bounds a single framed control message.
const MaxMessageSize = 64 * 1024

var ErrMessageTooLarge = errors.New("control message too large")

type JSONSerializer struct{}

func NewJSONSerializer() *JSONSerializer {
	return &JSONSerializer{}
}

type jsonMessage struct {
	Type    MessageType   `json:"type"`
	Request *FetchRequest `json:"request,omitempty"`
	Header  *FileHeader   `json:"header,omitempty"`
}

func (j *JSONSerializer) Marshal(msg *Message) ([]byte, error) {
	return json.Marshal(jsonMessage{
		Type:    msg.Type,
		Request: msg.Request,
		Header:  msg.Header,
	})
}

func (j *JSONSerializer) Unmarshal(data []byte) (*Message, error) {
	var jsonMsg jsonMessage
	if err := json.Unmarshal(data, &jsonMsg); err != nil {
		return nil, err
	}
	return &Message{
		Type:    jsonMsg.Type,
		Request: jsonMsg.Request,
		Header:  jsonMsg.Header,
	}, nil
}

func (j *JSONSerializer) Name() string {
	return "json"
}

// WriteMessage writes msg as a 4-byte big-endian length followed by the payload.
func WriteMessage(w io.Writer, s MessageSerializer, msg *Message) error {
	payload, err := s.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", msg.Type, err)
	}
	if len(payload) > MaxMessageSize {
		return ErrMessageTooLarge
	}
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(payload)))
	if _, err := w.Write(prefix[:]); err != nil {
		return err
	}
	_, err = w.Write(payload)
	return err
}

// ReadMessage reads one framed message written by WriteMessage.
func ReadMessage(r io.Reader, s MessageSerializer) (*Message, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint32(prefix[:])
	if size > MaxMessageSize {
		return nil, ErrMessageTooLarge
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("read message body: %w", err)
	}
	return s.Unmarshal(payload)
}
