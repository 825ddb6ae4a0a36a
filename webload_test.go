package webload

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "facade works")
	}))
	defer server.Close()

	resp, err := Get(server.URL + "/")
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, []byte("facade works"), resp.Body())
}

func TestNewRequestInvalidURL(t *testing.T) {
	_, err := NewRequest("GET", "://nope")
	require.Error(t, err)
	assert.Equal(t, string(KindValidation), GetErrorKind(err))
}

func TestClientThroughFacade(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "sid", Value: "xyz"})
		fmt.Fprint(w, "ok")
	}))
	defer server.Close()

	c := NewClient()
	defer c.Close()

	req, err := NewRequest("GET", server.URL+"/")
	require.NoError(t, err)

	resp, err := c.Send(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, 1, c.Jar().Len())
}
