package fetcher

import (
	"bufio"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// Doer sends an HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// TransportConfig tunes the default HTTP client.
type TransportConfig struct {
	DialTimeout         time.Duration
	TLSHandshakeTimeout time.Duration
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
}

func (c TransportConfig) withDefaults() TransportConfig {
	if c.DialTimeout <= 0 {
		c.DialTimeout = 10 * time.Second
	}
	if c.TLSHandshakeTimeout <= 0 {
		c.TLSHandshakeTimeout = 15 * time.Second
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = 100
	}
	if c.MaxIdleConnsPerHost <= 0 {
		c.MaxIdleConnsPerHost = 10
	}
	if c.IdleConnTimeout <= 0 {
		c.IdleConnTimeout = 90 * time.Second
	}
	return c
}

// NewHTTPClient builds a client that transparently decodes gzip and deflate
// bodies. Timeouts are applied per request by the Engine, so the client has none.
func NewHTTPClient(cfg TransportConfig) *http.Client {
	return &http.Client{
		Transport: &decompressingTransport{base: newHTTPTransport(cfg)},
	}
}

func newHTTPTransport(cfg TransportConfig) *http.Transport {
	cfg = cfg.withDefaults()
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.DialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		// decompressingTransport owns Accept-Encoding.
		DisableCompression: true,
	}
}

type decompressingTransport struct {
	base http.RoundTripper
}

func (t *decompressingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Accept-Encoding") == "" && req.Header.Get("Range") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("Accept-Encoding", "gzip, deflate")
	}
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err //nolint:wrapcheck // transport errors pass through untouched
	}
	if req.Method == http.MethodHead || resp.Body == nil || resp.Body == http.NoBody {
		return resp, nil
	}

	encoding := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	switch encoding {
	case "gzip", "x-gzip", "deflate":
	default:
		return resp, nil
	}
	decoded := &decodingBody{body: resp.Body, encoding: encoding}
	resp.Body = decoded
	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
	return resp, nil
}

// decodingBody opens the decompressor on the first Read so that RoundTrip
// never blocks on the body.
type decodingBody struct {
	body     io.ReadCloser
	encoding string
	r        io.ReadCloser
	err      error
}

func (d *decodingBody) Read(p []byte) (int, error) {
	if d.err != nil {
		return 0, d.err
	}
	if d.r == nil {
		r, err := d.open()
		if errors.Is(err, io.EOF) {
			// An encoded but empty body decodes to nothing.
			d.err = io.EOF
			return 0, io.EOF
		}
		if err != nil {
			d.err = fmt.Errorf("open %s body: %w", d.encoding, err)
			return 0, d.err
		}
		d.r = r
	}
	n, err := d.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, fmt.Errorf("read %s body: %w", d.encoding, err)
	}
	return n, err //nolint:wrapcheck // io.EOF must stay unwrapped
}

func (d *decodingBody) open() (io.ReadCloser, error) {
	if d.encoding != "deflate" {
		return gzip.NewReader(d.body) //nolint:wrapcheck // wrapped by Read
	}
	// "deflate" is zlib-wrapped per RFC 9110, but some servers send raw
	// DEFLATE data; sniff the zlib header to tell them apart.
	br := bufio.NewReader(d.body)
	head, err := br.Peek(2)
	if len(head) == 0 {
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err //nolint:wrapcheck // wrapped by Read
		}
		return nil, io.EOF
	}
	if err == nil && isZlibHeader(head) {
		return zlib.NewReader(br) //nolint:wrapcheck // wrapped by Read
	}
	return flate.NewReader(br), nil
}

func isZlibHeader(b []byte) bool {
	return b[0]&0x0f == 8 && (uint16(b[0])<<8|uint16(b[1]))%31 == 0
}

func (d *decodingBody) Close() error {
	if d.r != nil {
		_ = d.r.Close()
	}
	if err := d.body.Close(); err != nil {
		return fmt.Errorf("close %s body: %w", d.encoding, err)
	}
	return nil
}
