// Package ipfs implements the IPFS link resolver the mapping runtime
// consumes for ipfs.cat and ipfs.map: a thin client over a node's HTTP RPC
// API, read-only by design.
package ipfs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/graphprotocol/mapping-runtime/pkg/tlsutil"
)

// Resolver defines the read operations the mapping runtime needs from an
// IPFS node.
type Resolver interface {
	Cat(ctx context.Context, link string) ([]byte, error)
	CatStream(ctx context.Context, link string) (io.ReadCloser, error)
	Health(ctx context.Context) error
}

// Client resolves links through an IPFS node's HTTP RPC API.
type Client struct {
	apiURL     string
	httpClient *http.Client
	maxBytes   int64
	logger     *zap.Logger
}

// Config holds configuration for the IPFS client.
type Config struct {
	// APIURL is the base URL of the node's RPC API (e.g.
	// "http://localhost:5001"). If empty, defaults to that address.
	APIURL string

	// Timeout is the timeout for client operations. If zero, defaults to 60
	// seconds.
	Timeout time.Duration

	// MaxResponseBytes caps how much content Cat will buffer for a single
	// link. If zero, defaults to 64 MiB.
	MaxResponseBytes int64

	// TLS carries the trust settings for gateways serving private
	// certificates.
	TLS tlsutil.Config
}

const (
	defaultAPIURL   = "http://localhost:5001"
	defaultTimeout  = 60 * time.Second
	defaultMaxBytes = 64 << 20
)

// NewClient creates a resolver over the node at cfg.APIURL.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	if _, err := url.Parse(apiURL); err != nil {
		return nil, fmt.Errorf("invalid IPFS API URL %q: %w", apiURL, err)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	maxBytes := cfg.MaxResponseBytes
	if maxBytes == 0 {
		maxBytes = defaultMaxBytes
	}

	return &Client{
		apiURL:     strings.TrimRight(apiURL, "/"),
		httpClient: tlsutil.NewHTTPClient(timeout, cfg.TLS),
		maxBytes:   maxBytes,
		logger:     logger,
	}, nil
}

// Cat fetches a link's full content, capped at MaxResponseBytes.
func (c *Client) Cat(ctx context.Context, link string) ([]byte, error) {
	reader, err := c.CatStream(ctx, link)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	data, err := io.ReadAll(io.LimitReader(reader, c.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", link, err)
	}
	if int64(len(data)) > c.maxBytes {
		return nil, fmt.Errorf("content of %s exceeds %d bytes", link, c.maxBytes)
	}
	return data, nil
}

// CatStream opens a streaming read of a link's content. The caller owns
// closing the returned reader.
func (c *Client) CatStream(ctx context.Context, link string) (io.ReadCloser, error) {
	link = strings.TrimPrefix(link, "/ipfs/")

	reqURL := fmt.Sprintf("%s/api/v0/cat?arg=%s", c.apiURL, url.QueryEscape(link))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cat request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cat request for %s failed: %w", link, err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		if c.logger != nil {
			c.logger.Debug("IPFS cat returned non-OK status",
				zap.String("link", link),
				zap.Int("status", resp.StatusCode),
				zap.ByteString("body", body))
		}
		return nil, fmt.Errorf("cat of %s failed with status %d", link, resp.StatusCode)
	}
	return resp.Body, nil
}

// Health checks that the node's RPC API is reachable.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/api/v0/id", nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed with status: %d", resp.StatusCode)
	}
	return nil
}
