package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"net"
	"strings"
	"time"
)

var (
	ErrNoPeerCertificate   = errors.New("peer presented no certificate")
	ErrFingerprintMismatch = errors.New("certificate fingerprint mismatch")
)

// certificateLifetime only needs to cover a single share.
const certificateLifetime = 7 * 24 * time.Hour

// NewSelfSignedCertificate creates a throwaway TLS certificate for kp. Peers
// authenticate it by fingerprint rather than by chain, so hosts are informational.
func NewSelfSignedCertificate(kp *KeyPair, hosts []string) (tls.Certificate, error) {
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 64))
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to generate serial number: %w", err)
	}

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{"ticketShare"},
		},
		NotBefore:             time.Now().Add(-time.Minute),
		NotAfter:              time.Now().Add(certificateLifetime),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else if h != "" {
			template.DNSNames = append(template.DNSNames, h)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, kp.PublicKey, kp.PrivateKey)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to create certificate: %w", err)
	}
	leaf, err := x509.ParseCertificate(der)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to parse certificate: %w", err)
	}

	return tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  kp.PrivateKey,
		Leaf:        leaf,
	}, nil
}

// Fingerprint is the hex SHA-256 of a DER certificate.
func Fingerprint(der []byte) string {
	sum := sha256.Sum256(der)
	return hex.EncodeToString(sum[:])
}

// PinnedVerifier returns a tls.Config.VerifyPeerCertificate callback that accepts
// only a leaf certificate with the given fingerprint.
func PinnedVerifier(fingerprint string) func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
	want := strings.ToLower(fingerprint)
	return func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		if len(rawCerts) == 0 {
			return ErrNoPeerCertificate
		}
		got := Fingerprint(rawCerts[0])
		if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
			return ErrFingerprintMismatch
		}
		return nil
	}
}

// ServerTLSConfig serves cert for the given ALPN protocol.
func ServerTLSConfig(cert tls.Certificate, alpn string) *tls.Config {
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{alpn},
		MinVersion:   tls.VersionTLS13,
	}
}

// PinnedClientTLSConfig trusts exactly the certificate with fingerprint.
func PinnedClientTLSConfig(fingerprint, alpn string) *tls.Config {
	return &tls.Config{
		// chain verification is replaced by the fingerprint pin
		InsecureSkipVerify:    true,
		VerifyPeerCertificate: PinnedVerifier(fingerprint),
		NextProtos:            []string{alpn},
		MinVersion:            tls.VersionTLS13,
	}
}
