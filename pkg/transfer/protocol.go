package transfer

// ALPN is negotiated on every QUIC connection between peers.
const ALPN = "ticketshare/1"

type MessageType string

const (
	FetchRequestType MessageType = "fetch_request"
	FileHeaderType   MessageType = "file_header"
)

// Progress is one sample of a transfer: units done out of total.
// A sample with Done >= Total is terminal.
type Progress struct {
	Done  int64
	Total int64
}

// FetchRequest is the first message a receiver writes on a stream.
type FetchRequest struct {
	Token string `json:"token"`
}

// FileHeader is the sender's answer to a FetchRequest. A non-empty Error means
// the request was refused and no file bytes follow.
type FileHeader struct {
	Name      string `json:"name"`
	Size      int64  `json:"size"`
	MimeType  string `json:"mime_type,omitempty"`
	Checksum  string `json:"checksum"`
	Error     string `json:"error,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

// Message wraps control messages exchanged before the raw file bytes.
type Message struct {
	Type    MessageType
	Request *FetchRequest
	Header  *FileHeader
}

type MessageSerializer interface {
	Marshal(message *Message) ([]byte, error)
	Unmarshal(data []byte) (*Message, error)
	Name() string
}
