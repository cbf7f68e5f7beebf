package transfer

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rescp17/ticketShare/pkg/fileInfo"
)

// Chunk is one read of a file. Integrity is checked once over the whole file.
type Chunk struct {
	SequenceNo uint32
	Data       []byte
}

type Chunker struct {
	file          *os.File
	chunkSize     int32
	currentSeq    uint32
	totalByteSize int64
	bytesRead     int64
	buffer        []byte
}

var ErrIsDir = errors.New("cannot chunk a directory")

func NewChunkerFromFileNode(node *fileInfo.FileNode, chunkSize int32) (*Chunker, error) {
	if node.IsDir {
		return nil, ErrIsDir
	}
	if chunkSize < MinChunkSize || chunkSize > MaxChunkSize {
		return nil, fmt.Errorf("chunk size must be between %d and %d", MinChunkSize, MaxChunkSize)
	}
	file, err := os.Open(node.Path)
	if err != nil {
		return nil, err
	}

	return &Chunker{
		file:          file,
		chunkSize:     chunkSize,
		totalByteSize: node.Size,
		buffer:        make([]byte, chunkSize),
	}, nil
}

// Next returns the next chunk, or io.EOF once the node's size has been read.
// The returned Data is only valid until the following call.
func (c *Chunker) Next() (*Chunk, error) {
	if c.bytesRead >= c.totalByteSize {
		return nil, io.EOF
	}

	remaining := c.totalByteSize - c.bytesRead
	buf := c.buffer
	if remaining < int64(len(buf)) {
		buf = buf[:remaining]
	}

	n, err := c.file.Read(buf)
	if n > 0 {
		c.bytesRead += int64(n)
		c.currentSeq++
		return &Chunk{SequenceNo: c.currentSeq, Data: buf[:n]}, nil
	}
	if err == io.EOF {
		// the file shrank after it was measured
		return nil, io.ErrUnexpectedEOF
	}
	if err == nil {
		err = io.ErrNoProgress
	}
	return nil, err
}

func (c *Chunker) BytesRead() int64 {
	return c.bytesRead
}

func (c *Chunker) Close() error {
	return c.file.Close()
}
