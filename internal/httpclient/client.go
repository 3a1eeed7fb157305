package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"time"

	"golang.org/x/net/proxy"
)

// checkProxyTimeout bounds the SOCKS5 handshake performed by CheckConnection.
const checkProxyTimeout = 2 * time.Second

// maxRedirects is the redirect chain length after which the last response
// is returned as-is.
const maxRedirects = 10

// Options configures a Client.
type Options struct {
	// ProxyAddress is an optional SOCKS5 proxy in "host:port" form.
	// Empty means direct connections.
	ProxyAddress string

	// Timeout is the whole-request timeout applied to every client.
	Timeout time.Duration

	// UserAgent is set on every request that does not already carry one.
	UserAgent string

	// Transport replaces the network transport. Tests use it to install
	// httpmock; production code leaves it nil.
	Transport http.RoundTripper
}

// Client builds HTTP clients sharing one transport and one cookie jar.
type Client struct {
	opts      Options
	dialer    proxy.Dialer
	transport http.RoundTripper
	jar       http.CookieJar
}

// New creates a Client. A non-empty ProxyAddress is validated but not
// contacted; call CheckConnection to verify it.
func New(opts Options) (*Client, error) {
	c := &Client{opts: opts}

	if opts.ProxyAddress != "" {
		if !isValidProxyAddress(opts.ProxyAddress) {
			return nil, ErrInvalidProxyAddress
		}
		dialer, err := proxy.SOCKS5("tcp", opts.ProxyAddress, nil, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		c.dialer = dialer
	}

	jar, _ := cookiejar.New(nil) //nolint:errcheck // cookiejar.New only fails with invalid options
	c.jar = jar

	if opts.Transport != nil {
		c.transport = opts.Transport
	} else {
		c.transport = c.newTransport()
	}
	return c, nil
}

// isValidProxyAddress checks for a "host:port" address with a port in 1..65535.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" || port == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	return n >= 1 && n <= 65535
}

func (c *Client) newTransport() *http.Transport {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		// The fetcher negotiates gzip, deflate and br itself and decodes
		// the body, so the transport must not add its own gzip layer.
		DisableCompression: true,
	}

	if c.dialer != nil {
		transport.Proxy = nil
		transport.DialContext = c.DialContext
	}
	return transport
}

// ProxyAddress returns the configured proxy address, or "" for direct.
func (c *Client) ProxyAddress() string {
	return c.opts.ProxyAddress
}

// NewHTTPClient returns an *http.Client that injects the User-Agent and the
// given per-site headers into every request. Callers may replace
// CheckRedirect; the default stops after maxRedirects hops.
func (c *Client) NewHTTPClient(headers map[string]string) *http.Client {
	return &http.Client{
		Transport: &headerInjectingTransport{
			base:      c.transport,
			userAgent: c.opts.UserAgent,
			headers:   headers,
		},
		Timeout: c.opts.Timeout,
		Jar:     c.jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}

// DialContext establishes a TCP connection through the proxy with context
// support. Without a proxy it dials directly.
func (c *Client) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if c.dialer == nil {
		var d net.Dialer
		return d.DialContext(ctx, network, address)
	}
	if cd, ok := c.dialer.(proxy.ContextDialer); ok {
		return cd.DialContext(ctx, network, address)
	}

	type dialResult struct {
		conn net.Conn
		err  error
	}
	resultCh := make(chan dialResult, 1)

	go func() {
		conn, err := c.dialer.Dial(network, address)
		resultCh <- dialResult{conn, err}
	}()

	select {
	case result := <-resultCh:
		return result.conn, result.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SOCKS5 protocol constants
const (
	socks5Version       = 0x05
	socks5AuthNone      = 0x00
	socks5CmdConnect    = 0x01
	socks5AddrTypeDomID = 0x03

	// socks5ProbeHost is a reserved, never-resolving name used to check that
	// the proxy answers CONNECT requests.
	socks5ProbeHost = "wikiexport-probe.invalid"
)

// CheckConnection performs a SOCKS5 handshake and a CONNECT request against
// the configured proxy. Without a proxy it reports ProxyStatusOK.
//
// Any CONNECT reply with the right version counts as success, since the
// probe host never resolves and only the protocol exchange matters.
func (c *Client) CheckConnection(ctx context.Context) ProxyStatus {
	if c.opts.ProxyAddress == "" {
		return ProxyStatusOK
	}

	ctx, cancel := context.WithTimeout(ctx, checkProxyTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.opts.ProxyAddress)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ProxyStatusTimeout
		}
		return ProxyStatusCannotConnect
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(checkProxyTimeout)); err != nil {
		return ProxyStatusCannotConnect
	}

	// Greeting: version, one method, no-auth.
	if _, err := conn.Write([]byte{socks5Version, 0x01, socks5AuthNone}); err != nil {
		return ProxyStatusCannotConnect
	}

	authResp := make([]byte, 2)
	if _, err := io.ReadFull(conn, authResp); err != nil {
		if isTimeout(err) {
			return ProxyStatusTimeout
		}
		return ProxyStatusWrongType
	}
	if authResp[0] != socks5Version {
		return ProxyStatusWrongType
	}
	if authResp[1] != socks5AuthNone {
		return ProxyStatusWrongType
	}

	port := uint16(80)
	connectReq := []byte{
		socks5Version,
		socks5CmdConnect,
		0x00, // reserved
		socks5AddrTypeDomID,
		byte(len(socks5ProbeHost)),
	}
	connectReq = append(connectReq, []byte(socks5ProbeHost)...)
	connectReq = append(connectReq, byte(port>>8), byte(port&0xFF))

	if _, err := conn.Write(connectReq); err != nil {
		return ProxyStatusCannotConnect
	}

	connectResp := make([]byte, 4)
	if _, err := io.ReadFull(conn, connectResp); err != nil {
		if isTimeout(err) {
			return ProxyStatusTimeout
		}
		return ProxyStatusWrongType
	}
	if connectResp[0] != socks5Version {
		return ProxyStatusWrongType
	}

	return ProxyStatusOK
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// headerInjectingTransport wraps an http.RoundTripper to inject the
// User-Agent and custom headers into every request.
type headerInjectingTransport struct {
	base      http.RoundTripper
	userAgent string
	headers   map[string]string
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())

	if t.userAgent != "" && clone.Header.Get("User-Agent") == "" {
		clone.Header.Set("User-Agent", t.userAgent)
	}
	for key, value := range t.headers {
		clone.Header.Set(key, value)
	}

	return t.base.RoundTrip(clone)
}
