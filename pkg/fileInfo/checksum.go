package fileInfo

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"os"
)

var ErrChecksumDir = errors.New("checksum is only defined for files")

func calculateSHA256(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := file.Close(); err != nil {
			slog.Error("fail to close file", "error", err.Error())
		}
	}()
	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

func (n *FileNode) CalcChecksum() (string, error) {
	if n.IsDir {
		return "", ErrChecksumDir
	}
	sum, err := calculateSHA256(n.Path)
	if err != nil {
		return "", err
	}
	n.Checksum = sum
	return sum, nil
}

// VerifySHA256 recomputes the checksum of the file on disk and compares it.
func (n *FileNode) VerifySHA256(expectedChecksum string) (bool, error) {
	actual, err := n.CalcChecksum()
	if err != nil {
		return false, err
	}
	return actual == expectedChecksum, nil
}
