package transport

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
)

// SecurityMode controls which trust policies are acceptable.
type SecurityMode string

const (
	SecurityModeDevelopment SecurityMode = "development"
	SecurityModeProduction  SecurityMode = "production"
)

var (
	ErrInvalidSecurityMode     = errors.New("transport: invalid security mode")
	ErrInsecureSkipNotAllowed  = errors.New("transport: insecure skip verify not allowed")
	ErrVerifyPeerNotAllowed    = errors.New("transport: custom peer verification not allowed")
	ErrCAFileParse             = errors.New("transport: parse ca bundle")
	ErrServerCertificateReject = errors.New("transport: server certificate rejected")
)

// NormalizeSecurityMode lowercases mode and defaults it to development.
func NormalizeSecurityMode(mode SecurityMode) SecurityMode {
	if strings.TrimSpace(string(mode)) == "" {
		return SecurityModeDevelopment
	}
	return SecurityMode(strings.ToLower(strings.TrimSpace(string(mode))))
}

// TrustPolicy decides how the server certificate is checked. It is always
// supplied by the caller; nothing in this package skips verification on
// its own.
type TrustPolicy struct {
	Mode SecurityMode

	// InsecureSkipVerify accepts any server certificate.
	InsecureSkipVerify bool

	// CAFile is a PEM bundle used instead of the system roots.
	CAFile string

	// ServerName overrides the name checked against the certificate.
	// Defaults to the host part of the dial address.
	ServerName string

	// VerifyPeer replaces chain verification with a custom check.
	VerifyPeer func(rawCerts [][]byte) error
}

// Validate rejects policies that the security mode does not allow.
func (p TrustPolicy) Validate() error {
	switch NormalizeSecurityMode(p.Mode) {
	case SecurityModeDevelopment:
		return nil
	case SecurityModeProduction:
		if p.InsecureSkipVerify {
			return ErrInsecureSkipNotAllowed
		}
		if p.VerifyPeer != nil {
			return ErrVerifyPeerNotAllowed
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidSecurityMode, p.Mode)
	}
}

// ClientTLS builds the client TLS config for addr.
func ClientTLS(p TrustPolicy, addr string, alpn ...string) (*tls.Config, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	cfg := &tls.Config{
		MinVersion:         tls.VersionTLS13,
		InsecureSkipVerify: p.InsecureSkipVerify,
		NextProtos:         alpn,
	}

	serverName := strings.TrimSpace(p.ServerName)
	if serverName == "" {
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}
		serverName = host
	}
	cfg.ServerName = serverName

	if caPath := strings.TrimSpace(p.CAFile); caPath != "" {
		caPEM, err := os.ReadFile(caPath)
		if err != nil {
			return nil, err
		}
		pool := x509.NewCertPool()
		if ok := pool.AppendCertsFromPEM(caPEM); !ok {
			return nil, fmt.Errorf("%w: %s", ErrCAFileParse, caPath)
		}
		cfg.RootCAs = pool
	}

	if p.VerifyPeer != nil {
		verify := p.VerifyPeer
		cfg.InsecureSkipVerify = true
		cfg.VerifyPeerCertificate = func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			if err := verify(rawCerts); err != nil {
				return fmt.Errorf("%w: %v", ErrServerCertificateReject, err)
			}
			return nil
		}
	}
	return cfg, nil
}
