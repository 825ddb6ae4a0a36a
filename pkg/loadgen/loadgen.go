// Package loadgen drives sustained request load against a target: a pool
// of workers, each with its own client, looping dispatches until a request
// budget, duration, or context cancellation ends the run.
package loadgen

import (
	"context"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/webstress/webload/pkg/client"
	weberrors "github.com/webstress/webload/pkg/errors"
	"github.com/webstress/webload/pkg/request"
)

// Job describes one load run.
type Job struct {
	// URL is the target, http or https.
	URL string

	// Method defaults to GET. Params are added to every request.
	Method string
	Params []request.Param

	// Workers is the number of concurrent clients. Defaults to 1.
	Workers int

	// Requests caps the total number of dispatches across all workers.
	// Zero means no cap.
	Requests int64

	// Duration ends the run after the given wall time. Zero means no
	// duration bound; the run then needs a request cap or an external
	// context cancellation to stop.
	Duration time.Duration

	// RatePerSecond caps the aggregate dispatch rate across all workers.
	// Zero means unlimited.
	RatePerSecond float64

	// Configure is applied to each worker's client before the run starts.
	Configure func(*client.Client)

	// Logger receives worker lifecycle and failure events. Nil means no
	// logging.
	Logger *zap.Logger
}

// Result aggregates a finished run.
type Result struct {
	Elapsed time.Duration

	// Attempts counts dispatch attempts; Errors counts the failed ones.
	Attempts int64
	Errors   int64

	// Stats merges every worker's client trackers.
	Stats *client.Stats
}

// Run executes the job and blocks until every worker has stopped.
func Run(ctx context.Context, job Job) (*Result, error) {
	target, err := url.Parse(job.URL)
	if err != nil {
		return nil, weberrors.NewValidationError("invalid target URL: " + err.Error())
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return nil, weberrors.NewValidationError("unsupported target scheme " + strconv.Quote(target.Scheme))
	}

	workers := job.Workers
	if workers < 1 {
		workers = 1
	}
	method := job.Method
	if method == "" {
		method = request.MethodGet
	}
	logger := job.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if job.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.Duration)
		defer cancel()
	}

	var limiter *rate.Limiter
	if job.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(job.RatePerSecond), 1)
	}

	var (
		attempts  int64
		errCount  int64
		remaining int64 = job.Requests
		wg        sync.WaitGroup
	)

	clients := make([]*client.Client, workers)
	for i := range clients {
		c := client.New()
		c.EnableStatistics()
		if job.Configure != nil {
			job.Configure(c)
		}
		clients[i] = c
	}

	started := time.Now()
	for i, c := range clients {
		wg.Add(1)
		go func(id int, c *client.Client) {
			defer wg.Done()
			defer c.Close()

			log := logger.With(zap.Int("worker", id))
			log.Debug("worker started")
			defer log.Debug("worker stopped")

			for {
				if ctx.Err() != nil {
					return
				}
				if job.Requests > 0 && atomic.AddInt64(&remaining, -1) < 0 {
					return
				}
				if limiter != nil {
					if err := limiter.Wait(ctx); err != nil {
						return
					}
				}

				req := request.New(method, target)
				for _, p := range job.Params {
					req.AddParameter(p.Name, p.Value)
				}

				atomic.AddInt64(&attempts, 1)
				if _, err := c.Send(req); err != nil {
					atomic.AddInt64(&errCount, 1)
					log.Debug("dispatch failed", zap.Error(err))
				}
			}
		}(i, c)
	}
	wg.Wait()

	result := &Result{
		Elapsed:  time.Since(started),
		Attempts: atomic.LoadInt64(&attempts),
		Errors:   atomic.LoadInt64(&errCount),
		Stats:    mergeStats(clients),
	}
	return result, nil
}

func mergeStats(clients []*client.Client) *client.Stats {
	merged := client.NewStats()
	for _, c := range clients {
		merged.Merge(c.Statistics())
	}
	return merged
}
