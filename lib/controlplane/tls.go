// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package controlplane

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"net/url"
	"os"
)

// tlsConfig builds the client TLS configuration: the system pool plus
// the PEM certificates in certPath, expecting serverName.
func tlsConfig(certPath, serverName string) (*tls.Config, error) {
	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}
	if certPath != "" {
		pemData, err := os.ReadFile(certPath)
		if err != nil {
			return nil, fmt.Errorf("reading control plane certificate: %w", err)
		}
		if !pool.AppendCertsFromPEM(pemData) {
			return nil, fmt.Errorf("no PEM certificates found in %s", certPath)
		}
	}
	return &tls.Config{
		RootCAs:    pool,
		ServerName: serverName,
		MinVersion: tls.VersionTLS12,
	}, nil
}

// verifyTLS dials base and completes a handshake with config. It
// returns the verified peer's leaf subject for logging.
func verifyTLS(ctx context.Context, base *url.URL, config *tls.Config) (string, error) {
	address := base.Host
	if base.Port() == "" {
		address = net.JoinHostPort(base.Hostname(), "443")
	}
	dialer := &tls.Dialer{Config: config}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return "", fmt.Errorf("verifying control plane TLS at %s (expecting %q): %w", address, config.ServerName, err)
	}
	defer conn.Close()

	state := conn.(*tls.Conn).ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return "", fmt.Errorf("control plane at %s presented no certificate", address)
	}
	return state.PeerCertificates[0].Subject.String(), nil
}
