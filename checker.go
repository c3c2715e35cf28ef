package upchuk

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Result is the outcome of one reachability check. Err is set on transport
// failures only; any HTTP status counts as reachable.
type Result struct {
	Record     UrlRecord
	StatusCode int
	Status     string
	Latency    time.Duration
	Err        error
}

func (r Result) Reachable() bool {
	return r.Err == nil
}

// NewChecker returns a checker whose requests give up after timeout.
// A zero timeout waits forever.
func NewChecker(timeout time.Duration, out io.Writer) *Checker {
	return &Checker{
		client: &http.Client{Timeout: timeout},
		out:    out,
	}
}

// CheckAll checks records one at a time. A failed url never stops the rest;
// only ctx cancellation does.
func (c *Checker) CheckAll(ctx context.Context, records []UrlRecord) []Result {
	if len(records) == 0 {
		_, _ = fmt.Fprintln(c.out, "No urls found, add urls before checking")
		return nil
	}
	results := make([]Result, 0, len(records))
	for _, rec := range records {
		if ctx.Err() != nil {
			break
		}
		_, _ = fmt.Fprintf(c.out, "[…] %-30s ⏳ Checking... ", rec.Url)
		res := c.check(ctx, rec)
		if res.Err != nil {
			_, _ = fmt.Fprintf(c.out, "\r[✗] %-30s ✖ Failed: %v\n", rec.Url, res.Err)
		} else {
			_, _ = fmt.Fprintf(c.out, "\r[✓] %-30s ✔ %s in %dms\n", rec.Url, res.Status, res.Latency.Milliseconds())
		}
		results = append(results, res)
	}
	return results
}

func (c *Checker) check(ctx context.Context, rec UrlRecord) Result {
	res := Result{Record: rec}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rec.Url, http.NoBody)
	if err != nil {
		res.Err = err
		return res
	}
	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		res.Err = err
		return res
	}
	res.Latency = time.Since(start)
	res.StatusCode = resp.StatusCode
	res.Status = resp.Status
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	return res
}
