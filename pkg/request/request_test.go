package request

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webstress/webload/pkg/cookie"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func marshal(r *Request, s Settings) string {
	return string(r.Marshal(s))
}

func TestMarshalGET(t *testing.T) {
	r := New(MethodGet, mustURL(t, "http://www.example.com/index.html"))
	wire := marshal(r, Settings{KeepAlive: true, AcceptGZIP: true})

	assert.True(t, strings.HasPrefix(wire, "GET /index.html HTTP/1.1\r\n"))
	assert.Contains(t, wire, "Host: www.example.com\r\n")
	assert.Contains(t, wire, "Connection: Keep-Alive\r\n")
	assert.Contains(t, wire, "Accept-Encoding: gzip\r\n")
	assert.True(t, strings.HasSuffix(wire, "\r\n\r\n"))
}

func TestMarshalEmptyPathBecomesRoot(t *testing.T) {
	r := New(MethodGet, mustURL(t, "http://example.com"))
	wire := marshal(r, Settings{})

	assert.True(t, strings.HasPrefix(wire, "GET / HTTP/1.1\r\n"))
	assert.Contains(t, wire, "Connection: Close\r\n")
}

func TestMarshalHostIncludesExplicitPort(t *testing.T) {
	r := New(MethodGet, mustURL(t, "http://example.com:8080/"))
	wire := marshal(r, Settings{})

	assert.Contains(t, wire, "Host: example.com:8080\r\n")
}

func TestMarshalGETQueryMerge(t *testing.T) {
	r := New(MethodGet, mustURL(t, "http://example.com/search"))
	r.AddParameter("q", "load test")
	r.AddParameter("page", "2")
	wire := marshal(r, Settings{})
	assert.True(t, strings.HasPrefix(wire, "GET /search?q=load+test&page=2 HTTP/1.1\r\n"))

	r = New(MethodGet, mustURL(t, "http://example.com/search?q=existing"))
	r.AddParameter("page", "2")
	wire = marshal(r, Settings{})
	assert.True(t, strings.HasPrefix(wire, "GET /search?q=existing&page=2 HTTP/1.1\r\n"),
		"existing query continues with &, got %q", wire)
}

func TestMarshalPOSTParams(t *testing.T) {
	r := New(MethodPost, mustURL(t, "http://example.com/submit"))
	r.AddParameter("name", "load test")
	r.AddParameter("kind", "smoke")
	wire := marshal(r, Settings{})

	assert.True(t, strings.HasPrefix(wire, "POST /submit HTTP/1.1\r\n"))
	assert.Contains(t, wire, "Content-Type: application/x-www-form-urlencoded\r\n")
	assert.Contains(t, wire, "Content-Length: 25\r\n")
	assert.True(t, strings.HasSuffix(wire, "\r\n\r\nname=load+test&kind=smoke"))
}

func TestMarshalPOSTLiteralBody(t *testing.T) {
	r := New(MethodPost, mustURL(t, "http://example.com/api"))
	r.SetHeader("Content-Type", "application/json")
	r.Body = `{"ok":true}`
	wire := marshal(r, Settings{})

	assert.Contains(t, wire, "Content-Type: application/json\r\n")
	assert.NotContains(t, wire, "application/x-www-form-urlencoded")
	assert.True(t, strings.HasSuffix(wire, "\r\n\r\n"+r.Body))
}

func TestMarshalParamsTakePrecedenceOverBody(t *testing.T) {
	r := New(MethodPost, mustURL(t, "http://example.com/submit"))
	r.Body = "ignored"
	r.AddParameter("a", "1")
	wire := marshal(r, Settings{})

	assert.True(t, strings.HasSuffix(wire, "\r\n\r\na=1"))
}

func TestMarshalUnnamedParameterRawValue(t *testing.T) {
	r := New(MethodPost, mustURL(t, "http://example.com/raw"))
	r.AddParameter("", "<xml/>")
	wire := marshal(r, Settings{})

	assert.True(t, strings.HasSuffix(wire, "\r\n\r\n<xml/>"))
}

func TestMarshalCommonHeadersSkipRequestSetNames(t *testing.T) {
	r := New(MethodGet, mustURL(t, "http://example.com/"))
	r.SetHeader("User-Agent", "custom/2.0")
	wire := marshal(r, Settings{CommonHeaders: []Header{
		{Name: "User-Agent", Value: "common/1.0"},
		{Name: "Accept-Language", Value: "en"},
	}})

	assert.Contains(t, wire, "User-Agent: custom/2.0\r\n")
	assert.NotContains(t, wire, "common/1.0")
	assert.Contains(t, wire, "Accept-Language: en\r\n")
}

func TestMarshalAuthorizationHeaders(t *testing.T) {
	r := New(MethodGet, mustURL(t, "http://example.com/"))
	wire := marshal(r, Settings{
		ProxyAuth:  &BasicAuth{User: "pu", Password: "pp"},
		OriginAuth: &BasicAuth{User: "ou", Password: "op"},
	})

	assert.Contains(t, wire, "Proxy-Authorization: Basic cHU6cHA=\r\n")
	assert.Contains(t, wire, "Authorization: Basic b3U6b3A=\r\n")
}

func TestMarshalCookiesFoldedIntoOneHeader(t *testing.T) {
	r := New(MethodGet, mustURL(t, "http://example.com/"))
	wire := marshal(r, Settings{Cookies: []*cookie.Cookie{
		cookie.New("a", "1", "example.com", "/", time.Time{}, false),
		cookie.New("b", "2", "example.com", "/", time.Time{}, false),
	}})

	assert.Contains(t, wire, "Cookie: a=1; b=2\r\n")
	assert.Equal(t, 1, strings.Count(wire, "Cookie:"))
}

func TestMarshalViaProxyUsesAbsoluteTarget(t *testing.T) {
	r := New(MethodGet, mustURL(t, "http://example.com/page?x=1"))
	wire := marshal(r, Settings{ViaProxy: true})

	assert.True(t, strings.HasPrefix(wire, "GET http://example.com/page?x=1 HTTP/1.1\r\n"))
}

func TestHeaderOperations(t *testing.T) {
	r := New(MethodGet, mustURL(t, "http://example.com/"))

	r.SetHeader("X-One", "1")
	r.SetHeader("x-one", "updated")
	assert.Equal(t, "updated", r.GetHeader("X-ONE"))
	assert.True(t, r.HasHeader("x-One"))
	require.Len(t, r.Headers(), 1)

	r.RemoveHeader("X-One")
	assert.False(t, r.HasHeader("X-One"))
	assert.Equal(t, "", r.GetHeader("X-One"))

	r.SetHeader("A", "1")
	r.ClearHeaders()
	assert.Empty(t, r.Headers())
}

func TestParameterOperations(t *testing.T) {
	r := New(MethodPost, mustURL(t, "http://example.com/"))

	r.AddParameter("tag", "one")
	r.AddParameter("tag", "two")
	assert.Equal(t, "one", r.ParameterValue("tag"))
	assert.Equal(t, []string{"one", "two"}, r.ParameterValues("tag"))

	r.ReplaceParameter("tag", "three")
	assert.Equal(t, []string{"three"}, r.ParameterValues("tag"))

	r.AddParameter("tag", "four")
	r.RemoveParameterValue("tag", "three")
	assert.Equal(t, []string{"four"}, r.ParameterValues("tag"))

	r.RemoveParameter("tag")
	assert.Empty(t, r.ParameterValues("tag"))
}

func TestAddEncodedParameter(t *testing.T) {
	r := New(MethodPost, mustURL(t, "http://example.com/"))

	require.NoError(t, r.AddEncodedParameter("q", "a+b%26c"))
	assert.Equal(t, "a b&c", r.ParameterValue("q"))

	assert.Error(t, r.AddEncodedParameter("q", "%zz"))
}

func TestClone(t *testing.T) {
	r := New(MethodPost, mustURL(t, "http://example.com/form"))
	r.AddParameter("a", "1")
	r.SetHeader("X-Trace", "t1")
	r.Body = "payload"

	clone := r.Clone(mustURL(t, "http://other.example.com/form2"))
	assert.Equal(t, "http://other.example.com/form2", clone.URL.String())
	assert.Equal(t, "1", clone.ParameterValue("a"))
	assert.Equal(t, "t1", clone.GetHeader("X-Trace"))
	assert.Equal(t, "payload", clone.Body)

	clone.AddParameter("b", "2")
	assert.Empty(t, r.ParameterValues("b"), "clone mutations do not leak back")

	same := r.Clone(nil)
	assert.Equal(t, r.URL, same.URL)
}
