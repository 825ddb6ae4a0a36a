package loadgen

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webstress/webload/pkg/client"
	"github.com/webstress/webload/pkg/request"
)

func TestRunRequestBudget(t *testing.T) {
	var hits int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		fmt.Fprint(w, "ok")
	}))
	defer server.Close()

	result, err := Run(context.Background(), Job{
		URL:      server.URL,
		Workers:  3,
		Requests: 10,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(10), result.Attempts)
	assert.Equal(t, int64(0), result.Errors)
	assert.Equal(t, int64(10), atomic.LoadInt64(&hits))
	assert.Equal(t, int64(10), result.Stats.RequestsProcessed.Count())
	assert.Equal(t, int64(10), result.Stats.ResponseCodes.Count("200"))
}

func TestRunPostParams(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.PostFormValue("op") != "stress" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, "ok")
	}))
	defer server.Close()

	result, err := Run(context.Background(), Job{
		URL:      server.URL,
		Method:   request.MethodPost,
		Params:   []request.Param{{Name: "op", Value: "stress"}},
		Requests: 4,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(4), result.Stats.ResponseCodes.Count("200"))
	assert.Equal(t, int64(0), result.Stats.ResponseCodes.Count("400"))
}

func TestRunDurationBound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ok")
	}))
	defer server.Close()

	start := time.Now()
	result, err := Run(context.Background(), Job{
		URL:      server.URL,
		Workers:  2,
		Duration: 100 * time.Millisecond,
	})
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Greater(t, result.Attempts, int64(0))
}

func TestRunRateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ok")
	}))
	defer server.Close()

	start := time.Now()
	result, err := Run(context.Background(), Job{
		URL:           server.URL,
		Workers:       2,
		Requests:      5,
		RatePerSecond: 50,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(5), result.Attempts)
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond,
		"5 requests at 50/s cannot finish instantly")
}

func TestRunConfigureAppliesToWorkers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Run-ID") != "run-42" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, "ok")
	}))
	defer server.Close()

	result, err := Run(context.Background(), Job{
		URL:      server.URL,
		Requests: 2,
		Configure: func(c *client.Client) {
			c.SetCommonHeader("X-Run-ID", "run-42")
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.Stats.ResponseCodes.Count("200"))
}

func TestRunRejectsBadTargets(t *testing.T) {
	_, err := Run(context.Background(), Job{URL: "://bad"})
	assert.Error(t, err)

	_, err = Run(context.Background(), Job{URL: "gopher://example.com/"})
	assert.Error(t, err)
}

func TestRunCancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ok")
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := Run(ctx, Job{URL: server.URL, Workers: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.Attempts)
}
