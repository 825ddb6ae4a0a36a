// Package client implements the HTTP engine: a hand-rolled HTTP/1.1
// exchange over raw sockets with connection reuse, cookie tracking,
// redirect following, proxy support, and per-client statistics.
package client

import (
	"crypto/tls"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/webstress/webload/pkg/cookie"
	weberrors "github.com/webstress/webload/pkg/errors"
	"github.com/webstress/webload/pkg/request"
	"github.com/webstress/webload/pkg/response"
	"github.com/webstress/webload/pkg/stats"
	"github.com/webstress/webload/pkg/tlsconfig"
)

// DefaultMaxRedirects caps how many hops a single dispatch may follow.
const DefaultMaxRedirects = 20

// DefaultSocketTimeout bounds dials and reads unless overridden.
const DefaultSocketTimeout = 30 * time.Second

// redirectCodes are the status codes whose Location header is followed.
var redirectCodes = map[int]bool{
	300: true,
	301: true,
	302: true,
	303: true,
	305: true,
	307: true,
}

// DialFunc dials the transport for a network address. Tests substitute
// in-memory connections through it.
type DialFunc func(network, addr string) (net.Conn, error)

// Stats holds the per-client trackers. All trackers are merged across
// workers by the load driver.
type Stats struct {
	RequestsProcessed *stats.IncrementalTracker
	RedirectsFollowed *stats.IncrementalTracker
	ResponseCodes     *stats.CategoricalTracker
	ResponseSizes     *stats.ValueTracker
	HeaderTime        *stats.TimeTracker
	ContentTime       *stats.TimeTracker
	TotalTime         *stats.TimeTracker
}

// NewStats returns a zeroed tracker set.
func NewStats() *Stats {
	return &Stats{
		RequestsProcessed: stats.NewIncrementalTracker(),
		RedirectsFollowed: stats.NewIncrementalTracker(),
		ResponseCodes:     stats.NewCategoricalTracker(),
		ResponseSizes:     stats.NewValueTracker(),
		HeaderTime:        stats.NewTimeTracker(),
		ContentTime:       stats.NewTimeTracker(),
		TotalTime:         stats.NewTimeTracker(),
	}
}

// Merge folds another client's trackers into this one.
func (s *Stats) Merge(other *Stats) {
	s.RequestsProcessed.Merge(other.RequestsProcessed)
	s.RedirectsFollowed.Merge(other.RedirectsFollowed)
	s.ResponseCodes.Merge(other.ResponseCodes)
	s.ResponseSizes.Merge(other.ResponseSizes)
	s.HeaderTime.Merge(other.HeaderTime)
	s.ContentTime.Merge(other.ContentTime)
	s.TotalTime.Merge(other.TotalTime)
}

// Client performs HTTP exchanges. One Client owns one cookie jar and one
// connection cache; a mutex serializes dispatches, so a Client is safe to
// share, but the load driver gives every worker its own to avoid
// contention.
type Client struct {
	mu sync.Mutex

	jar   *cookie.Jar
	cache *connCache

	commonHeaders []request.Header

	proxy      *Proxy
	originAuth *request.BasicAuth

	keepAlive               bool
	followRedirects         bool
	acceptGZIP              bool
	useCookies              bool
	retrieveAssociatedFiles bool
	maxRedirects            int

	socketTimeout time.Duration
	localAddr     *net.TCPAddr
	tlsConfig     *tls.Config

	dialFunc DialFunc
	logger   *zap.Logger

	collectStats bool
	stats        *Stats
}

// New creates a client with keep-alive, redirect following, gzip, and
// cookie tracking enabled.
func New() *Client {
	return &Client{
		jar:             cookie.NewJar(),
		cache:           newConnCache(),
		keepAlive:       true,
		followRedirects: true,
		acceptGZIP:      true,
		useCookies:      true,
		maxRedirects:    DefaultMaxRedirects,
		socketTimeout:   DefaultSocketTimeout,
		logger:          zap.NewNop(),
		stats:           NewStats(),
	}
}

// SetProxy routes subsequent requests through the given HTTP proxy. auth
// may be nil.
func (c *Client) SetProxy(host string, port int, auth *request.BasicAuth) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.proxy = &Proxy{Host: host, Port: port, Auth: auth}
}

// SetProxyURL parses a "[http://][user:pass@]host[:port]" proxy
// specification and installs it.
func (c *Client) SetProxyURL(raw string) error {
	p, err := ParseProxyURL(raw)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.proxy = p
	return nil
}

// ClearProxy removes any configured proxy.
func (c *Client) ClearProxy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.proxy = nil
}

// SetAuthentication configures Basic credentials sent to the origin
// server with every request.
func (c *Client) SetAuthentication(user, password string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.originAuth = &request.BasicAuth{User: user, Password: password}
}

// ClearAuthentication removes origin credentials.
func (c *Client) ClearAuthentication() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.originAuth = nil
}

// SetKeepAlive controls whether connections are offered for reuse.
func (c *Client) SetKeepAlive(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keepAlive = enabled
}

// SetFollowRedirects controls whether 3xx responses are followed.
func (c *Client) SetFollowRedirects(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.followRedirects = enabled
}

// SetMaxRedirects caps the redirect chain length for one dispatch.
func (c *Client) SetMaxRedirects(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maxRedirects = n
}

// SetAcceptGZIP controls the Accept-Encoding: gzip request header.
func (c *Client) SetAcceptGZIP(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.acceptGZIP = enabled
}

// SetUseCookies controls cookie harvesting and inclusion.
func (c *Client) SetUseCookies(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.useCookies = enabled
}

// SetDeleteLogoutCookies controls the jar policy that deletes a stored
// cookie when a same-name cookie arrives valued "LOGOUT".
func (c *Client) SetDeleteLogoutCookies(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jar.DeleteLogoutCookies = enabled
}

// SetRetrieveAssociatedFiles controls whether HTML responses trigger
// best-effort fetches of the files a browser would load with the page.
func (c *Client) SetRetrieveAssociatedFiles(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.retrieveAssociatedFiles = enabled
}

// SetSocketTimeout bounds dials and blocks on reads. Zero disables the
// bound.
func (c *Client) SetSocketTimeout(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.socketTimeout = d
}

// SetLocalAddress pins outgoing connections to a local IP.
func (c *Client) SetLocalAddress(ip string) error {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return weberrors.NewValidationError("invalid local address " + strconv.Quote(ip))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.localAddr = &net.TCPAddr{IP: parsed}
	return nil
}

// SetTLSConfig overrides the TLS configuration used for https targets.
func (c *Client) SetTLSConfig(cfg *tls.Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tlsConfig = cfg
}

// SetLogger installs a structured logger. The default is a nop.
func (c *Client) SetLogger(logger *zap.Logger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if logger == nil {
		logger = zap.NewNop()
	}
	c.logger = logger
}

// SetDialFunc overrides how transport connections are established.
func (c *Client) SetDialFunc(dial DialFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dialFunc = dial
}

// SetCommonHeader installs a header sent with every request unless the
// request sets the same name itself.
func (c *Client) SetCommonHeader(name, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, h := range c.commonHeaders {
		if strings.EqualFold(h.Name, name) {
			c.commonHeaders[i].Value = value
			return
		}
	}
	c.commonHeaders = append(c.commonHeaders, request.Header{Name: name, Value: value})
}

// RemoveCommonHeader deletes a client-wide header.
func (c *Client) RemoveCommonHeader(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, h := range c.commonHeaders {
		if strings.EqualFold(h.Name, name) {
			c.commonHeaders = append(c.commonHeaders[:i], c.commonHeaders[i+1:]...)
			return
		}
	}
}

// EnableStatistics turns on stat collection for subsequent dispatches.
func (c *Client) EnableStatistics() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.collectStats = true
}

// Statistics returns the client's trackers.
func (c *Client) Statistics() *Stats {
	return c.stats
}

// Jar returns the client's cookie jar.
func (c *Client) Jar() *cookie.Jar {
	return c.jar
}

// Close shuts down every cached connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.closeAll()
}

// Send performs one HTTP exchange, following redirects and fetching
// associated files as configured. Each exchange gets a single attempt; a
// followed redirect is a new exchange.
func (c *Client) Send(req *request.Request) (*response.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.collectStats {
		c.stats.TotalTime.Start()
		defer c.stats.TotalTime.Stop()
	}
	return c.send(req, 0, true)
}

func (c *Client) send(req *request.Request, depth int, fetchAssociated bool) (*response.Response, error) {
	if req == nil || req.URL == nil {
		return nil, weberrors.NewValidationError("request has no URL")
	}

	scheme := strings.ToLower(req.URL.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, weberrors.NewValidationError("unsupported URL scheme " + strconv.Quote(req.URL.Scheme))
	}

	host := req.URL.Hostname()
	port := defaultPort(scheme)
	if portStr := req.URL.Port(); portStr != "" {
		parsed, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, weberrors.NewValidationError("invalid URL port " + strconv.Quote(portStr))
		}
		port = parsed
	}

	conn, key, viaProxy, err := c.obtainConn(scheme, host, port)
	if err != nil {
		return nil, err
	}

	settings := request.Settings{
		ViaProxy:      viaProxy,
		KeepAlive:     c.keepAlive,
		AcceptGZIP:    c.acceptGZIP,
		CommonHeaders: c.commonHeaders,
		OriginAuth:    c.originAuth,
	}
	if viaProxy && c.proxy.hasAuth() {
		settings.ProxyAuth = c.proxy.Auth
	}
	if c.useCookies {
		settings.Cookies = c.jar.Matching(req.URL, time.Now())
	}

	if c.socketTimeout > 0 {
		conn.SetDeadline(time.Now().Add(c.socketTimeout))
	}

	payload := req.Marshal(settings)
	if _, err := conn.Write(payload); err != nil {
		conn.Close()
		return nil, weberrors.WithConnKey(weberrors.NewIOError("writing the request", err), key)
	}

	if c.collectStats {
		c.stats.HeaderTime.Start()
	}
	resp, err := readResponse(req.URL, conn, func() {
		if c.collectStats {
			c.stats.HeaderTime.Stop()
			c.stats.ContentTime.Start()
		}
	})
	if c.collectStats {
		c.stats.HeaderTime.Stop()
		c.stats.ContentTime.Stop()
	}
	if err != nil {
		conn.Close()
		return nil, weberrors.WithConnKey(err, key)
	}

	c.logger.Debug("exchange complete",
		zap.String("url", req.URL.String()),
		zap.String("conn", key),
		zap.Int("status", resp.StatusCode),
		zap.Int("body_bytes", len(resp.Body())))

	if c.collectStats {
		c.stats.RequestsProcessed.Increment()
		c.stats.ResponseCodes.Increment(strconv.Itoa(resp.StatusCode))
		c.stats.ResponseSizes.Add(int64(len(resp.Body())))
	}

	c.settleConnection(key, conn, resp)

	if c.useCookies {
		c.harvestCookies(req.URL, resp)
	}

	if c.followRedirects && redirectCodes[resp.StatusCode] {
		if redirected, handled, err := c.followRedirect(req, resp, depth, fetchAssociated); handled {
			return redirected, err
		}
	}

	if fetchAssociated && c.retrieveAssociatedFiles {
		c.fetchAssociatedFiles(resp, depth)
	}

	return resp, nil
}

func defaultPort(scheme string) int {
	if scheme == "https" {
		return 443
	}
	return 80
}

// obtainConn produces a transport connection for the request, reusing a
// cached one when available. The returned key identifies the cache slot.
func (c *Client) obtainConn(scheme, host string, port int) (net.Conn, string, bool, error) {
	hostPort := net.JoinHostPort(host, strconv.Itoa(port))

	if c.proxy != nil && scheme == "http" {
		key := "http://" + c.proxy.Address()
		if conn, ok := c.cache.checkOut(key); ok {
			c.logger.Debug("reusing connection", zap.String("conn", key))
			return conn, key, true, nil
		}
		conn, err := c.dial(c.proxy.Address())
		if err != nil {
			return nil, "", false, weberrors.NewConnectError(key, err)
		}
		return conn, key, true, nil
	}

	if c.proxy != nil && scheme == "https" {
		key := "connect://" + hostPort
		if conn, ok := c.cache.checkOut(key); ok {
			c.logger.Debug("reusing tunnel", zap.String("conn", key))
			return conn, key, false, nil
		}
		conn, err := c.dial(c.proxy.Address())
		if err != nil {
			return nil, "", false, weberrors.NewConnectError(key, err)
		}
		if c.socketTimeout > 0 {
			conn.SetDeadline(time.Now().Add(c.socketTimeout))
		}
		if err := connectTunnel(conn, c.proxy, host, port); err != nil {
			conn.Close()
			return nil, "", false, weberrors.WithConnKey(err, key)
		}
		tlsConn, err := c.handshake(conn, host)
		if err != nil {
			conn.Close()
			return nil, "", false, weberrors.NewConnectError(key, err)
		}
		return tlsConn, key, false, nil
	}

	key := scheme + "://" + hostPort
	if conn, ok := c.cache.checkOut(key); ok {
		c.logger.Debug("reusing connection", zap.String("conn", key))
		return conn, key, false, nil
	}

	conn, err := c.dial(hostPort)
	if err != nil {
		return nil, "", false, weberrors.NewConnectError(key, err)
	}
	if scheme == "https" {
		if c.socketTimeout > 0 {
			conn.SetDeadline(time.Now().Add(c.socketTimeout))
		}
		tlsConn, err := c.handshake(conn, host)
		if err != nil {
			conn.Close()
			return nil, "", false, weberrors.NewConnectError(key, err)
		}
		conn = tlsConn
	}
	return conn, key, false, nil
}

func (c *Client) dial(addr string) (net.Conn, error) {
	if c.dialFunc != nil {
		return c.dialFunc("tcp", addr)
	}
	dialer := net.Dialer{Timeout: c.socketTimeout}
	if c.localAddr != nil {
		dialer.LocalAddr = c.localAddr
	}
	return dialer.Dial("tcp", addr)
}

func (c *Client) handshake(conn net.Conn, host string) (net.Conn, error) {
	tlsConn := tls.Client(conn, tlsconfig.WithServerName(c.tlsConfig, host))
	if err := tlsConn.Handshake(); err != nil {
		return nil, err
	}
	return tlsConn, nil
}

// settleConnection decides the connection's fate: checked back in when the
// server agreed to keep-alive, closed otherwise.
func (c *Client) settleConnection(key string, conn net.Conn, resp *response.Response) {
	connHdr := strings.TrimSpace(resp.Header("connection"))
	if c.keepAlive && strings.EqualFold(connHdr, "keep-alive") {
		c.cache.checkIn(key, conn)
		return
	}
	conn.Close()
}

// harvestCookies folds the response's Set-Cookie values into the jar. A
// cookie that fails to parse is dropped, not fatal.
func (c *Client) harvestCookies(requestURL *url.URL, resp *response.Response) {
	for _, raw := range resp.CookieValues() {
		parsed, err := cookie.Parse(requestURL, raw)
		if err != nil {
			c.logger.Debug("dropping unparsable cookie",
				zap.String("set_cookie", raw), zap.Error(err))
			continue
		}
		c.jar.Add(parsed)
	}
}

// followRedirect dispatches the request against the Location target. A
// redirect response without a Location header is returned as-is.
func (c *Client) followRedirect(req *request.Request, resp *response.Response, depth int, fetchAssociated bool) (*response.Response, bool, error) {
	location := resp.Header("location")
	if location == "" {
		return nil, false, nil
	}

	if depth >= c.maxRedirects {
		return nil, true, weberrors.NewRedirectError(location,
			weberrors.NewValidationError("redirect chain exceeded "+strconv.Itoa(c.maxRedirects)+" hops"))
	}

	target, err := req.URL.Parse(location)
	if err != nil {
		return nil, true, weberrors.NewRedirectError(location, err)
	}

	if c.collectStats {
		c.stats.RedirectsFollowed.Increment()
	}
	c.logger.Debug("following redirect",
		zap.Int("status", resp.StatusCode),
		zap.String("location", target.String()))

	redirected, err := c.send(req.Clone(target), depth+1, fetchAssociated)
	return redirected, true, err
}

// fetchAssociatedFiles retrieves the images, frames, stylesheets, and
// scripts an HTML response refers to. Content is discarded and failures
// are swallowed; the point is the load the fetches generate.
func (c *Client) fetchAssociatedFiles(resp *response.Response, depth int) {
	doc := resp.HTMLDocument()
	if doc == nil {
		return
	}

	for _, file := range doc.AssociatedFiles() {
		fileURL, err := url.Parse(file)
		if err != nil {
			continue
		}
		if _, err := c.send(request.New(request.MethodGet, fileURL), depth+1, false); err != nil {
			c.logger.Debug("associated file fetch failed",
				zap.String("url", file), zap.Error(err))
		}
	}
}
