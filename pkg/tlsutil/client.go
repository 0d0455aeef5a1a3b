// Package tlsutil provides centralized TLS configuration for HTTP clients
// that talk to self-hosted gateways with private or wildcard certificates.
package tlsutil

import (
	"crypto/tls"
	"crypto/x509"
	"net/http"
	"strings"
	"time"
)

// Config describes the trust decisions for outbound TLS: an optional CA
// bundle for self-signed gateway certificates and an optional list of
// domains (wildcards allowed, e.g. *.ipfs.internal) whose certificates are
// accepted without verification when no CA bundle is available.
type Config struct {
	TrustedDomains []string
	CACertPEM      []byte
}

// ShouldSkipTLSVerify checks if TLS verification should be skipped for this
// domain.
func (c Config) ShouldSkipTLSVerify(domain string) bool {
	for _, trusted := range c.TrustedDomains {
		if strings.HasPrefix(trusted, "*.") {
			suffix := strings.TrimPrefix(trusted, "*")
			if strings.HasSuffix(domain, suffix) || domain == strings.TrimPrefix(suffix, ".") {
				return true
			}
		} else if domain == trusted {
			return true
		}
	}
	return false
}

// TLSConfig returns a TLS config with appropriate verification settings.
func (c Config) TLSConfig() *tls.Config {
	config := &tls.Config{
		MinVersion: tls.VersionTLS12,
	}

	if pool := c.certPool(); pool != nil {
		config.RootCAs = pool
	} else if len(c.TrustedDomains) > 0 {
		// No CA bundle but explicit trust: skip verification rather than
		// refuse to connect.
		config.InsecureSkipVerify = true
	}

	return config
}

func (c Config) certPool() *x509.CertPool {
	if len(c.CACertPEM) == 0 {
		return nil
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(c.CACertPEM) {
		return nil
	}
	return pool
}

// NewHTTPClient creates an HTTP client with TLS settings derived from c.
func NewHTTPClient(timeout time.Duration, c Config) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig: c.TLSConfig(),
		},
	}
}

// NewHTTPClientForDomain creates an HTTP client configured for a specific
// domain.
func NewHTTPClientForDomain(timeout time.Duration, c Config, hostname string) *http.Client {
	tlsConfig := c.TLSConfig()
	if c.certPool() == nil && c.ShouldSkipTLSVerify(hostname) {
		tlsConfig.InsecureSkipVerify = true
	}

	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig: tlsConfig,
		},
	}
}
