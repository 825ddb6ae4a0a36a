// Package cookie implements the simplified Netscape-style cookie grammar
// used by the webload HTTP engine, together with the client-owned jar.
package cookie

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/webstress/webload/pkg/errors"
)

// ExpiresFormat is the fixed date layout accepted in "expires" attributes.
const ExpiresFormat = "Mon, 02-Jan-2006 15:04:05 MST"

// Cookie is a single cookie parsed from a Set-Cookie header value or
// constructed directly. Once parsed it is treated as immutable.
type Cookie struct {
	Name    string
	Value   string
	Domain  string    // lowercased; defaults to the request host
	Path    string    // defaults to the request path
	Expires time.Time // zero means no expiry
	Secure  bool
	Version int // -1 when unset
	Comment string
	// Extra holds unrecognized attributes, keyed by lowercased name.
	Extra map[string]string
}

// New creates a cookie with the provided information.
func New(name, value, domain, path string, expires time.Time, secure bool) *Cookie {
	return &Cookie{
		Name:    name,
		Value:   value,
		Domain:  strings.ToLower(domain),
		Path:    path,
		Expires: expires,
		Secure:  secure,
		Version: -1,
		Extra:   map[string]string{},
	}
}

// Parse builds a cookie from a raw Set-Cookie header value. The first
// `name=value` pair is mandatory; subsequent `;`-separated attributes are
// recognized case-insensitively, and anything unrecognized is kept verbatim
// in Extra. requestURL supplies the domain and path defaults.
func Parse(requestURL *url.URL, setCookie string) (*Cookie, error) {
	c := &Cookie{Version: -1, Extra: map[string]string{}}
	haveName := false

	for _, token := range strings.Split(setCookie, ";") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}

		name := token
		value := ""
		if eq := strings.IndexByte(token, '='); eq >= 0 {
			name = token[:eq]
			value = token[eq+1:]
		}
		lower := strings.ToLower(name)

		if !haveName {
			// The first element must be the cookie name itself.
			c.Name = name
			c.Value = value
			haveName = true
			continue
		}

		switch lower {
		case "secure":
			c.Secure = true
		case "domain":
			c.Domain = strings.ToLower(value)
		case "path":
			c.Path = value
		case "expires":
			when, err := time.Parse(ExpiresFormat, value)
			if err != nil {
				return nil, errors.NewCookieError("unable to parse cookie expiration date", err)
			}
			c.Expires = when
		case "max-age":
			seconds, err := strconv.Atoi(value)
			if err != nil {
				return nil, errors.NewCookieError("unable to parse cookie max-age", err)
			}
			c.Expires = time.Now().Add(time.Duration(seconds) * time.Second)
		case "comment":
			c.Comment = value
		case "version":
			version, err := strconv.Atoi(value)
			if err != nil {
				return nil, errors.NewCookieError("unable to parse cookie version", err)
			}
			c.Version = version
		default:
			c.Extra[lower] = value
		}
	}

	if !haveName || c.Name == "" {
		return nil, errors.NewCookieError("unable to parse the cookie: no name provided", nil)
	}

	if c.Domain == "" {
		c.Domain = strings.ToLower(requestURL.Hostname())
	}
	if c.Path == "" {
		c.Path = requestURL.Path
	}

	return c, nil
}

// Expired reports whether the cookie's expiration date has passed. Cookies
// without an expiration date never expire.
func (c *Cookie) Expired(now time.Time) bool {
	return !c.Expires.IsZero() && c.Expires.Before(now)
}

// AppliesTo indicates whether this cookie should be included in a request
// for the given URL at the given time.
func (c *Cookie) AppliesTo(requestURL *url.URL, now time.Time) bool {
	if c.Expired(now) {
		return false
	}
	if c.Secure && !strings.EqualFold(requestURL.Scheme, "https") {
		return false
	}
	host := strings.ToLower(requestURL.Hostname())
	if !domainMatches(host, c.Domain) {
		return false
	}
	return strings.HasPrefix(requestURL.Path, c.Path)
}

// domainMatches reports whether host falls under the cookie domain. The
// suffix match is anchored at a label boundary so "example.com" covers
// "www.example.com" but never "notexample.com".
func domainMatches(host, domain string) bool {
	bare := strings.TrimPrefix(domain, ".")
	if host == bare {
		return true
	}
	return strings.HasSuffix(host, "."+bare)
}
