// Package fetch provides a rate-limited, caching HTTP client for JSON providers.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cht-holly/chtholly-vault/internal/clientdata"
	"github.com/cht-holly/chtholly-vault/internal/domain"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	DefaultRequestDelay = 1000 * time.Millisecond // Minimum spacing between dispatches
	DefaultTimeout      = 10 * time.Second
	DefaultMaxBodySize  = 16 << 20
	requestQueueSize    = 100
)

// Options configures a Client.
type Options struct {
	Name         string        // Used for logs and metric labels
	RequestDelay time.Duration // Defaults to DefaultRequestDelay
	Timeout      time.Duration // Defaults to DefaultTimeout
	Headers      map[string]string
	MaxBodySize  int64        // Defaults to DefaultMaxBodySize
	Metrics      *Metrics     // Defaults to unregistered collectors
	HTTPClient   *http.Client // Overrides Timeout when set
}

// requestJob represents a job in the rate limiting queue
type requestJob struct {
	ctx      context.Context
	url      string
	ttl      time.Duration
	resultCh chan requestResult
}

// requestResult represents the result of a request
type requestResult struct {
	body []byte
	err  error
}

// Client serializes provider requests through a single worker. Dispatches are spaced
// by at least RequestDelay, and successful responses are cached by full URL.
type Client struct {
	name         string
	httpClient   *http.Client
	headers      map[string]string
	maxBodySize  int64
	limiter      *rate.Limiter
	cache        *clientdata.Cache[[]byte]
	metrics      *Metrics
	log          zerolog.Logger
	requestQueue chan requestJob
	stopChan     chan struct{}
	workerDone   chan struct{}
	mu           sync.RWMutex
	closed       bool
	once         sync.Once
}

// NewClient creates a client and starts its worker.
func NewClient(opts Options, log zerolog.Logger) *Client {
	if opts.Name == "" {
		opts.Name = "fetch"
	}
	if opts.RequestDelay <= 0 {
		opts.RequestDelay = DefaultRequestDelay
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = DefaultMaxBodySize
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(nil)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	c := &Client{
		name:         opts.Name,
		httpClient:   httpClient,
		headers:      opts.Headers,
		maxBodySize:  opts.MaxBodySize,
		limiter:      rate.NewLimiter(rate.Every(opts.RequestDelay), 1),
		cache:        clientdata.NewCache[[]byte](opts.Name + "_responses"),
		metrics:      opts.Metrics,
		log:          log.With().Str("client", opts.Name).Logger(),
		requestQueue: make(chan requestJob, requestQueueSize),
		stopChan:     make(chan struct{}),
		workerDone:   make(chan struct{}),
	}

	go c.worker()

	return c
}

// Cache exposes the response cache so it can be registered with the cleanup job.
func (c *Client) Cache() *clientdata.Cache[[]byte] {
	return c.cache
}

// ClearCache drops every cached response.
func (c *Client) ClearCache() {
	c.cache.Clear()
	c.log.Debug().Msg("Response cache cleared")
}

// GetJSON fetches url and decodes the body into out.
// A ttl of zero disables caching for this call.
func (c *Client) GetJSON(ctx context.Context, url string, ttl time.Duration, out interface{}) error {
	body, err := c.Get(ctx, url, ttl)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		c.cache.Delete(url)
		return &domain.APIError{
			Code:    domain.ErrCodeMalformed,
			Message: fmt.Sprintf("Unexpected response shape: %v", err),
			Err:     err,
		}
	}
	return nil
}

// Get returns the raw JSON body for url. Fresh cache hits return without
// taking a queue slot.
func (c *Client) Get(ctx context.Context, url string, ttl time.Duration) ([]byte, error) {
	if ttl > 0 {
		if body, ok := c.cache.Get(url); ok {
			c.metrics.cacheLookups.WithLabelValues(c.name, "hit").Inc()
			c.log.Debug().Str("url", url).Msg("Cache hit")
			return body, nil
		}
		c.metrics.cacheLookups.WithLabelValues(c.name, "miss").Inc()
	}

	resultCh := make(chan requestResult, 1)
	job := requestJob{
		ctx:      ctx,
		url:      url,
		ttl:      ttl,
		resultCh: resultCh,
	}

	if err := c.enqueue(job); err != nil {
		return nil, err
	}

	select {
	case result := <-resultCh:
		return result.body, result.err
	case <-ctx.Done():
		return nil, transportError(ctx.Err())
	}
}

func (c *Client) enqueue(job requestJob) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return domain.NewAPIError(domain.ErrCodeTransport, "client is closed")
	}

	select {
	case c.requestQueue <- job:
		c.metrics.queueDepth.WithLabelValues(c.name).Inc()
		return nil
	default:
		return domain.NewAPIError(domain.ErrCodeTransport, "request queue is full")
	}
}

// worker processes requests from the queue sequentially with rate limiting
func (c *Client) worker() {
	defer close(c.workerDone)

	for {
		select {
		case <-c.stopChan:
			// Drain remaining jobs before exiting
			for {
				select {
				case job := <-c.requestQueue:
					c.process(job)
				default:
					return
				}
			}
		case job := <-c.requestQueue:
			c.process(job)
		}
	}
}

func (c *Client) process(job requestJob) {
	c.metrics.queueDepth.WithLabelValues(c.name).Dec()

	// Caller gave up while queued
	if err := job.ctx.Err(); err != nil {
		job.resultCh <- requestResult{err: transportError(err)}
		return
	}

	// An earlier job for the same URL may have filled the cache
	if job.ttl > 0 {
		if body, ok := c.cache.Get(job.url); ok {
			job.resultCh <- requestResult{body: body}
			return
		}
	}

	if err := c.limiter.Wait(job.ctx); err != nil {
		job.resultCh <- requestResult{err: transportError(err)}
		return
	}

	start := time.Now()
	body, err := c.do(job.ctx, job.url)
	c.metrics.requestDuration.WithLabelValues(c.name).Observe(time.Since(start).Seconds())

	if err != nil {
		c.metrics.requestCount.WithLabelValues(c.name, string(domain.AsAPIError(err).Code)).Inc()
		c.log.Warn().Err(err).Str("url", job.url).Msg("Provider request failed")
		job.resultCh <- requestResult{err: err}
		return
	}

	c.metrics.requestCount.WithLabelValues(c.name, "ok").Inc()
	c.cache.Store(job.url, body, job.ttl)
	job.resultCh <- requestResult{body: body}
}

// do performs a single GET without rate limiting
func (c *Client) do(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, transportError(err)
	}
	req.Header.Set("Accept", "application/json")
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	c.log.Debug().Str("url", url).Msg("Dispatching request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize+1))
	if err != nil {
		return nil, transportError(err)
	}

	if err := statusError(resp.StatusCode, resp.Status); err != nil {
		return nil, err
	}

	if int64(len(body)) > c.maxBodySize {
		return nil, &domain.APIError{
			Code:    domain.ErrCodeHTTP,
			Message: fmt.Sprintf("Response exceeds %d bytes", c.maxBodySize),
			Status:  resp.StatusCode,
		}
	}

	if !json.Valid(body) {
		return nil, &domain.APIError{
			Code:    domain.ErrCodeMalformed,
			Message: "Response is not valid JSON",
			Status:  resp.StatusCode,
		}
	}

	return body, nil
}

// Close stops accepting requests, finishes queued ones and stops the worker.
func (c *Client) Close() {
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		close(c.stopChan)
		<-c.workerDone
	})
}
