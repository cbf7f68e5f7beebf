package engine

import (
	"encoding/base32"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
)

const (
	ticketPrefix  = "ts1"
	ticketVersion = 1
)

var ticketEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Ticket is everything a receiver needs to fetch a shared file.
type Ticket struct {
	Version     int      `json:"v"`
	Node        string   `json:"node,omitempty"`
	Addrs       []string `json:"addrs"`
	Fingerprint string   `json:"fp"`
	Token       string   `json:"token"`
	Name        string   `json:"name"`
	Size        int64    `json:"size"`
	Checksum    string   `json:"sum"`
}

// Encode renders the ticket as a single copy-pasteable word.
func (t Ticket) Encode() (string, error) {
	if err := t.validate(); err != nil {
		return "", err
	}
	return jsonTicket(t)
}

// ParseTicket decodes text produced by Encode. Surrounding whitespace is ignored.
func ParseTicket(text string) (Ticket, error) {
	text = strings.ToLower(strings.TrimSpace(text))
	if !strings.HasPrefix(text, ticketPrefix) {
		return Ticket{}, fmt.Errorf("%w: unknown format", ErrInvalidTicket)
	}
	raw, err := ticketEncoding.DecodeString(strings.ToUpper(text[len(ticketPrefix):]))
	if err != nil {
		return Ticket{}, fmt.Errorf("%w: %v", ErrInvalidTicket, err)
	}
	var t Ticket
	if err := json.Unmarshal(raw, &t); err != nil {
		return Ticket{}, fmt.Errorf("%w: %v", ErrInvalidTicket, err)
	}
	if err := t.validate(); err != nil {
		return Ticket{}, err
	}
	return t, nil
}

func (t Ticket) validate() error {
	switch {
	case t.Version != ticketVersion:
		return fmt.Errorf("%w: unsupported version %d", ErrInvalidTicket, t.Version)
	case len(t.Addrs) == 0 && t.Node == "":
		return fmt.Errorf("%w: no peer address", ErrInvalidTicket)
	case t.Token == "":
		return fmt.Errorf("%w: missing token", ErrInvalidTicket)
	case t.Size < 0:
		return fmt.Errorf("%w: negative size", ErrInvalidTicket)
	}
	if fp, err := hex.DecodeString(t.Fingerprint); err != nil || len(fp) != 32 {
		return fmt.Errorf("%w: bad fingerprint", ErrInvalidTicket)
	}
	if t.Name == "" || t.Name == "." || t.Name == ".." || filepath.Base(t.Name) != t.Name || strings.ContainsAny(t.Name, `/\`) {
		return fmt.Errorf("%w: bad file name %q", ErrInvalidTicket, t.Name)
	}
	return nil
}

func jsonTicket(t Ticket) (string, error) {
	raw, err := json.Marshal(t)
	if err != nil {
		return "", err
	}
	return ticketPrefix + strings.ToLower(ticketEncoding.EncodeToString(raw)), nil
}
