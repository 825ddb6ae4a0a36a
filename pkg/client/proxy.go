package client

import (
	"fmt"
	"io"
	"net"
	"net/url"
	"strconv"
	"strings"

	weberrors "github.com/webstress/webload/pkg/errors"
	"github.com/webstress/webload/pkg/request"
)

// Proxy identifies an HTTP forward proxy. Plain HTTP requests are
// forwarded through it with an absolute-URI request target; HTTPS requests
// are tunneled through it with CONNECT.
type Proxy struct {
	Host string
	Port int
	Auth *request.BasicAuth
}

// defaultProxyPort is used when a proxy URL carries no explicit port.
const defaultProxyPort = 8080

// ParseProxyURL parses a proxy specification of the form
// "[http://][user:pass@]host[:port]".
func ParseProxyURL(raw string) (*Proxy, error) {
	if raw == "" {
		return nil, weberrors.NewValidationError("empty proxy URL")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, weberrors.NewValidationError("invalid proxy URL: " + err.Error())
	}
	if u.Scheme != "http" {
		return nil, weberrors.NewValidationError("unsupported proxy scheme " + strconv.Quote(u.Scheme))
	}
	if u.Hostname() == "" {
		return nil, weberrors.NewValidationError("proxy URL has no host")
	}

	p := &Proxy{Host: u.Hostname(), Port: defaultProxyPort}
	if portStr := u.Port(); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil || port < 1 || port > 65535 {
			return nil, weberrors.NewValidationError("invalid proxy port " + strconv.Quote(portStr))
		}
		p.Port = port
	}
	if u.User != nil {
		password, _ := u.User.Password()
		p.Auth = &request.BasicAuth{User: u.User.Username(), Password: password}
	}
	return p, nil
}

// Address returns the proxy's dial address.
func (p *Proxy) Address() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

// hasAuth reports whether usable proxy credentials are configured. Both
// fields must be non-empty for a Proxy-Authorization header to be sent.
func (p *Proxy) hasAuth() bool {
	return p.Auth != nil && p.Auth.User != "" && p.Auth.Password != ""
}

// connectTunnel asks an already-dialed proxy connection to open a tunnel
// to host:port. On return the connection carries raw end-to-end bytes and
// is ready for a TLS handshake.
func connectTunnel(conn net.Conn, p *Proxy, host string, port int) error {
	var b strings.Builder
	fmt.Fprintf(&b, "CONNECT %s:%d HTTP/1.1\r\n", host, port)
	fmt.Fprintf(&b, "Host: %s:%d\r\n", host, port)
	b.WriteString("Connection: Keep-Alive\r\n")
	if p.hasAuth() {
		b.WriteString("Proxy-Authorization: Basic ")
		b.WriteString(p.Auth.Encode())
		b.WriteString("\r\n")
	}
	b.WriteString("\r\n")

	if _, err := io.WriteString(conn, b.String()); err != nil {
		return weberrors.NewIOError("writing the CONNECT request", err)
	}

	statusLine := ""
	for {
		line, err := readTunnelLine(conn)
		if err != nil {
			return weberrors.NewIOError("reading the CONNECT response", err)
		}
		if line == "" {
			break
		}
		if statusLine == "" {
			statusLine = line
		}
	}

	fields := strings.Fields(statusLine)
	if len(fields) < 2 {
		return weberrors.NewParseError("unable to parse CONNECT response status line "+strconv.Quote(statusLine), nil)
	}
	if fields[1] != "200" {
		return weberrors.NewConnectError("", fmt.Errorf("proxy refused CONNECT: %s", statusLine))
	}
	return nil
}

// readTunnelLine reads one LF-terminated line byte by byte so no bytes
// beyond the CONNECT response headers are consumed.
func readTunnelLine(conn io.Reader) (string, error) {
	var line []byte
	one := make([]byte, 1)
	for {
		n, err := conn.Read(one)
		if n <= 0 {
			if err == nil {
				err = io.EOF
			}
			return "", err
		}
		if one[0] == '\n' {
			return strings.TrimSuffix(string(line), "\r"), nil
		}
		line = append(line, one[0])
	}
}
