// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package controlplane

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bureau-foundation/trace-agent/lib/netutil"
	"github.com/bureau-foundation/trace-agent/lib/telemetry"
)

// TokenHeader carries the trace-source token on every request.
const TokenHeader = "X-Trace-Source-Token"

// Endpoint paths, relative to the base URL.
const (
	telemetryPath       = "/api/telemetry"
	discoveredHostsPath = "/api/control/newDiscoveredAPIs"
	hostsToTracePath    = "/api/hostsToTrace"
)

// DefaultTimeout applies when Config.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// Config configures a Client.
type Config struct {
	// BaseURL is the control plane root, e.g. "https://apiclarity:8443".
	// A trailing slash is ignored.
	BaseURL string

	// Token is sent in TokenHeader.
	Token string

	// CertPath is an optional PEM file added to the system trust pool.
	CertPath string

	// CertHostname is the name the control plane's certificate must
	// carry. Defaults to the host of BaseURL.
	CertHostname string

	Compression Compression

	// Timeout bounds each request, including reading the response.
	Timeout time.Duration
}

// Client talks to the control plane. It is safe for concurrent use.
type Client struct {
	base        string
	token       string
	compression Compression
	httpClient  *http.Client
	logger      *slog.Logger
}

type hostList struct {
	Hosts []string `json:"hosts"`
}

// New validates config and, for https, verifies that the control
// plane presents a certificate trusted under config before returning.
// A verification failure is returned; the caller is expected to treat
// it as fatal.
func New(ctx context.Context, config Config, logger *slog.Logger) (*Client, error) {
	if config.Token == "" {
		return nil, errors.New("controlplane: token is required")
	}
	base, err := url.Parse(strings.TrimSuffix(config.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("controlplane: parsing base URL: %w", err)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("controlplane: base URL %q has no host", config.BaseURL)
	}
	if _, err := ParseCompression(string(config.Compression)); err != nil {
		return nil, fmt.Errorf("controlplane: %w", err)
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()

	switch base.Scheme {
	case "https":
		serverName := config.CertHostname
		if serverName == "" {
			serverName = base.Hostname()
		}
		clientTLS, err := tlsConfig(config.CertPath, serverName)
		if err != nil {
			return nil, fmt.Errorf("controlplane: %w", err)
		}
		verifyCtx, cancel := context.WithTimeout(ctx, timeout)
		subject, err := verifyTLS(verifyCtx, base, clientTLS)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("controlplane: %w", err)
		}
		logger.Info("control plane certificate verified",
			"address", base.Host,
			"server_name", serverName,
			"subject", subject,
		)
		transport.TLSClientConfig = clientTLS
	case "http":
		logger.Warn("control plane URL is not https; traffic and token are sent in the clear",
			"url", base.String(),
		)
	default:
		return nil, fmt.Errorf("controlplane: unsupported URL scheme %q", base.Scheme)
	}

	return &Client{
		base:        base.String(),
		token:       config.Token,
		compression: config.Compression,
		httpClient:  &http.Client{Transport: transport, Timeout: timeout},
		logger:      logger,
	}, nil
}

// SubmitTelemetry posts one telemetry document.
func (c *Client) SubmitTelemetry(ctx context.Context, document *telemetry.Document) error {
	return c.post(ctx, "submit telemetry", telemetryPath, document)
}

// SubmitDiscoveredHosts announces hosts seen for the first time.
func (c *Client) SubmitDiscoveredHosts(ctx context.Context, hosts []string) error {
	return c.post(ctx, "submit discovered hosts", discoveredHostsPath, hostList{Hosts: hosts})
}

// FetchHostsToTrace returns the control plane's current allow list.
// A missing or null list is returned as empty.
func (c *Client) FetchHostsToTrace(ctx context.Context) ([]string, error) {
	const operation = "fetch hosts to trace"

	request, err := c.newRequest(ctx, http.MethodGet, hostsToTracePath, nil, "")
	if err != nil {
		return nil, fmt.Errorf("controlplane: %s: %w", operation, err)
	}
	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("controlplane: %s: %w", operation, err)
	}
	defer response.Body.Close()

	if err := checkStatus(operation, response); err != nil {
		return nil, err
	}
	var result hostList
	if err := netutil.DecodeResponse(response.Body, &result); err != nil {
		return nil, fmt.Errorf("controlplane: %s: %w", operation, err)
	}
	if result.Hosts == nil {
		result.Hosts = []string{}
	}
	return result.Hosts, nil
}

func (c *Client) post(ctx context.Context, operation, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("controlplane: %s: encoding request: %w", operation, err)
	}
	encoded, contentEncoding, err := encode(c.compression, body)
	if err != nil {
		return fmt.Errorf("controlplane: %s: %w", operation, err)
	}

	request, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(encoded), contentEncoding)
	if err != nil {
		return fmt.Errorf("controlplane: %s: %w", operation, err)
	}
	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("controlplane: %s: %w", operation, err)
	}
	defer response.Body.Close()

	if err := checkStatus(operation, response); err != nil {
		return err
	}
	// Drain so the connection returns to the pool.
	_, _ = io.Copy(io.Discard, io.LimitReader(response.Body, netutil.MaxResponseSize))

	c.logger.Debug("control plane request complete",
		"operation", operation,
		"status", response.StatusCode,
		"request_bytes", len(encoded),
	)
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, contentEncoding string) (*http.Request, error) {
	request, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, err
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "application/json")
	request.Header.Set(TokenHeader, c.token)
	if contentEncoding != "" {
		request.Header.Set("Content-Encoding", contentEncoding)
	}
	return request, nil
}

func checkStatus(operation string, response *http.Response) error {
	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return nil
	}
	return &StatusError{
		Operation:  operation,
		StatusCode: response.StatusCode,
		Body:       netutil.ErrorBody(response.Body),
	}
}
