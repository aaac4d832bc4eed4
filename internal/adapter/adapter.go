package adapter

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
)

var ErrInvalidCA = errors.New("failed to parse CA certificate")

// MakeTLSConfig returns a client [*tls.Config] trusting the CA at caFile.
//
// A client certificate is loaded when both certFile and keyFile are set.
// An empty caFile means no TLS and returns nil.
func MakeTLSConfig(caFile, certFile, keyFile string) (*tls.Config, error) {
	const op = "adapter.MakeTLSConfig"

	if caFile == "" {
		return nil, nil
	}

	caCert, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read CA certificate file: %w", op, err)
	}

	caCertPool := x509.NewCertPool()
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCA)
	}

	cfg := &tls.Config{
		RootCAs:    caCertPool,
		MinVersion: tls.VersionTLS12,
	}

	switch {
	case certFile != "" && keyFile != "":
		clientCert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		cfg.Certificates = []tls.Certificate{clientCert}
	case certFile != "" || keyFile != "":
		return nil, fmt.Errorf(
			"%s: client certificate and key must be set together", op,
		)
	}

	return cfg, nil
}
