// Package linkcheck probes kit download links and reports the ones that no
// longer answer.
package linkcheck

import (
	"context"
	"net/http"
	"sync"
	"time"

	"drumkits/internal/kit"
)

type Result struct {
	Slug    string
	URL     string
	Status  int
	Latency time.Duration
	Err     error
}

// OK reports whether the host answered without a client or server error.
func (r Result) OK() bool {
	return r.Err == nil && r.Status > 0 && r.Status < http.StatusBadRequest
}

type Checker struct {
	client     *http.Client
	concurrent int
}

func New(timeout time.Duration, concurrent int) *Checker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if concurrent <= 0 {
		concurrent = 8
	}
	return &Checker{client: &http.Client{Timeout: timeout}, concurrent: concurrent}
}

// Check probes every kit with a usable download link. Results keep the
// order of kits; kits without a link are skipped.
func (c *Checker) Check(ctx context.Context, kits []kit.Kit) []Result {
	type job struct {
		idx int
		res Result
	}
	var jobs []job
	for _, k := range kits {
		u, ok := kit.SafeDownloadURL(k.Download)
		if !ok {
			continue
		}
		jobs = append(jobs, job{idx: len(jobs), res: Result{Slug: k.Slug, URL: u}})
	}

	out := make([]Result, len(jobs))
	sem := make(chan struct{}, c.concurrent)
	var wg sync.WaitGroup
	for _, j := range jobs {
		wg.Add(1)
		sem <- struct{}{}
		go func(j job) {
			defer wg.Done()
			defer func() { <-sem }()
			out[j.idx] = c.probe(ctx, j.res)
		}(j)
	}
	wg.Wait()
	return out
}

// probe tries HEAD first; hosts that refuse HEAD get a GET whose body is
// discarded unread.
func (c *Checker) probe(ctx context.Context, r Result) Result {
	start := time.Now()
	status, err := c.do(ctx, http.MethodHead, r.URL)
	if err == nil && (status == http.StatusMethodNotAllowed || status == http.StatusNotImplemented) {
		status, err = c.do(ctx, http.MethodGet, r.URL)
	}
	r.Status = status
	r.Err = err
	r.Latency = time.Since(start)
	return r
}

func (c *Checker) do(ctx context.Context, method, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", "drumkits-linkcheck/1.0")
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}
