// Command webload runs a load job against a target URL and prints an
// aggregated summary.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/webstress/webload/pkg/client"
	"github.com/webstress/webload/pkg/loadgen"
	"github.com/webstress/webload/pkg/tlsconfig"
)

func main() {
	var (
		targetURL = flag.String("url", "", "target URL (required)")
		workers   = flag.Int("workers", 1, "number of concurrent workers")
		requests  = flag.Int64("requests", 0, "total request cap (0 = unlimited)")
		duration  = flag.Duration("duration", 0, "run duration (0 = unbounded)")
		rps       = flag.Float64("rate", 0, "aggregate requests per second (0 = unlimited)")
		keepAlive = flag.Bool("keepalive", true, "reuse connections")
		redirects = flag.Bool("redirects", true, "follow redirects")
		gzip      = flag.Bool("gzip", true, "advertise gzip support")
		assoc     = flag.Bool("assoc", false, "fetch files referenced by HTML responses")
		proxyURL  = flag.String("proxy", "", "HTTP proxy ([http://][user:pass@]host[:port])")
		timeout   = flag.Duration("timeout", client.DefaultSocketTimeout, "socket timeout")
		insecure  = flag.Bool("insecure", false, "skip TLS certificate verification")
		verbose   = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	if *targetURL == "" {
		fmt.Fprintln(os.Stderr, "webload: -url is required")
		flag.Usage()
		os.Exit(2)
	}
	if *requests == 0 && *duration == 0 {
		fmt.Fprintln(os.Stderr, "webload: set -requests or -duration to bound the run")
		os.Exit(2)
	}

	logger := zap.NewNop()
	if *verbose {
		var err error
		logger, err = zap.NewDevelopment()
		if err != nil {
			fmt.Fprintln(os.Stderr, "webload:", err)
			os.Exit(1)
		}
		defer logger.Sync()
	}

	job := loadgen.Job{
		URL:           *targetURL,
		Workers:       *workers,
		Requests:      *requests,
		Duration:      *duration,
		RatePerSecond: *rps,
		Logger:        logger,
		Configure: func(c *client.Client) {
			c.SetKeepAlive(*keepAlive)
			c.SetFollowRedirects(*redirects)
			c.SetAcceptGZIP(*gzip)
			c.SetRetrieveAssociatedFiles(*assoc)
			c.SetSocketTimeout(*timeout)
			c.SetLogger(logger)
			if *insecure {
				c.SetTLSConfig(tlsconfig.New(tlsconfig.Options{InsecureSkipVerify: true}))
			}
			if *proxyURL != "" {
				if err := c.SetProxyURL(*proxyURL); err != nil {
					fmt.Fprintln(os.Stderr, "webload:", err)
					os.Exit(2)
				}
			}
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := loadgen.Run(ctx, job)
	if err != nil {
		fmt.Fprintln(os.Stderr, "webload:", err)
		os.Exit(1)
	}

	printSummary(result)
}

func printSummary(r *loadgen.Result) {
	s := r.Stats
	fmt.Printf("elapsed:            %v\n", r.Elapsed.Round(time.Millisecond))
	fmt.Printf("attempts:           %d (%d failed)\n", r.Attempts, r.Errors)
	fmt.Printf("requests processed: %d\n", s.RequestsProcessed.Count())
	fmt.Printf("redirects followed: %d\n", s.RedirectsFollowed.Count())

	if r.Elapsed > 0 && s.RequestsProcessed.Count() > 0 {
		perSec := float64(s.RequestsProcessed.Count()) / r.Elapsed.Seconds()
		fmt.Printf("throughput:         %.1f req/s\n", perSec)
	}

	fmt.Println("response codes:")
	for _, code := range s.ResponseCodes.Categories() {
		fmt.Printf("  %s: %d\n", code, s.ResponseCodes.Count(code))
	}

	if s.ResponseSizes.Count() > 0 {
		fmt.Printf("response bytes:     total=%d min=%d max=%d avg=%.0f\n",
			s.ResponseSizes.Total(), s.ResponseSizes.Min(),
			s.ResponseSizes.Max(), s.ResponseSizes.Average())
	}
	if s.TotalTime.Count() > 0 {
		fmt.Printf("request time:       min=%v max=%v avg=%v\n",
			s.TotalTime.Min().Round(time.Microsecond),
			s.TotalTime.Max().Round(time.Microsecond),
			s.TotalTime.Average().Round(time.Microsecond))
	}
}
