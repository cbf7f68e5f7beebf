package fileInfo

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
)

const defaultMimeType = "application/octet-stream"

// FileNode describes a single file offered for transfer.
type FileNode struct {
	Name     string `json:"name"`
	IsDir    bool   `json:"is_dir"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type,omitempty"`
	Checksum string `json:"checksum,omitempty"`
	Path     string `json:"-"`
}

// CreateNode stats path and fills in the mime type and checksum of a regular file.
// Directories are described but not hashed.
func CreateNode(path string) (FileNode, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return FileNode{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return FileNode{}, err
	}
	node := FileNode{
		Name:  info.Name(),
		IsDir: info.IsDir(),
		Size:  info.Size(),
		Path:  abs,
	}
	if node.IsDir {
		return node, nil
	}
	if !info.Mode().IsRegular() {
		return FileNode{}, fmt.Errorf("%s is not a regular file", abs)
	}

	node.MimeType = DetectMimeType(abs)
	if _, err := node.CalcChecksum(); err != nil {
		return FileNode{}, err
	}
	return node, nil
}

// DetectMimeType sniffs the content of path, falling back to application/octet-stream.
func DetectMimeType(path string) string {
	mime, err := mimetype.DetectFile(path)
	if err != nil {
		return defaultMimeType
	}
	return mime.String()
}
