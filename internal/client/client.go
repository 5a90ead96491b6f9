// Package client is an HTTP client for the biasaudit API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	service "github.com/okian/biasaudit/internal/app"
	"github.com/okian/biasaudit/internal/domain/model"
)

const defaultTimeout = 30 * time.Second

// Sentinel kinds for API responses.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrNotFound     = errors.New("not found")
	ErrBackpressure = errors.New("backpressure")
	ErrServer       = errors.New("server error")
)

// StatusError is a non-2xx API response.
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http %d", e.StatusCode)
	}
	return fmt.Sprintf("http %d: %s: %s", e.StatusCode, e.Code, e.Message)
}

// Unwrap maps the status code to a sentinel kind.
func (e *StatusError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case e.StatusCode == http.StatusTooManyRequests:
		return ErrBackpressure
	case e.StatusCode >= http.StatusInternalServerError:
		return ErrServer
	case e.StatusCode >= http.StatusBadRequest:
		return ErrBadRequest
	default:
		return nil
	}
}

// SubmitResponse acknowledges an asynchronous submission.
type SubmitResponse struct {
	ID        string       `json:"id"`
	Status    model.Status `json:"status"`
	Duplicate bool         `json:"duplicate"`
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client. The client is never
// modified; WithTimeout applies to a copy.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout regardless of option order.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// Client talks to one biasaudit server.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
}

// New creates a client for baseURL, e.g. "http://localhost:9080".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{baseURL: strings.TrimRight(baseURL, "/")}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: defaultTimeout}
	}
	if c.timeout > 0 {
		hc := *c.http
		hc.Timeout = c.timeout
		c.http = &hc
	}
	return c
}

// Health checks that the server answers /healthz.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

// Submit queues req for asynchronous evaluation.
func (c *Client) Submit(ctx context.Context, req service.EvaluationRequest) (SubmitResponse, error) { //nolint:gocritic // hugeParam
	var out SubmitResponse
	err := c.do(ctx, http.MethodPost, "/evaluations", req, &out)
	return out, err
}

// Evaluate runs req synchronously on the server.
func (c *Client) Evaluate(ctx context.Context, req service.EvaluationRequest) (model.Report, error) { //nolint:gocritic // hugeParam
	var out model.Report
	err := c.do(ctx, http.MethodPost, "/evaluations/sync", req, &out)
	return out, err
}

// Report fetches one report.
func (c *Client) Report(ctx context.Context, id string) (model.Report, error) {
	var out model.Report
	err := c.do(ctx, http.MethodGet, "/evaluations/"+url.PathEscape(id), nil, &out)
	return out, err
}

// Reports lists up to limit reports, newest first.
func (c *Client) Reports(ctx context.Context, limit int) ([]model.Report, error) {
	var out struct {
		Reports []model.Report `json:"reports"`
	}
	err := c.do(ctx, http.MethodGet, "/evaluations?limit="+strconv.Itoa(limit), nil, &out)
	return out.Reports, err
}

// Wait polls a report until it is no longer pending or ctx ends.
func (c *Client) Wait(ctx context.Context, id string, interval time.Duration) (model.Report, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		r, err := c.Report(ctx, id)
		if err != nil {
			return r, err
		}
		if r.Status != model.StatusPending {
			return r, nil
		}
		select {
		case <-ctx.Done():
			return r, fmt.Errorf("wait for report %s: %w", id, ctx.Err())
		case <-ticker.C:
		}
	}
}

// BatchResult counts the outcomes of SubmitAll.
type BatchResult struct {
	Accepted  int `json:"accepted" yaml:"accepted"`
	Duplicate int `json:"duplicate" yaml:"duplicate"`
	Failed    int `json:"failed" yaml:"failed"`
	// IDs holds the report id per request, empty where submission failed.
	IDs []string `json:"ids" yaml:"ids"`
}

// SubmitAll submits reqs with up to workers concurrent requests.
func (c *Client) SubmitAll(ctx context.Context, reqs []service.EvaluationRequest, workers int) BatchResult {
	if workers < 1 {
		workers = 1
	}
	res := BatchResult{IDs: make([]string, len(reqs))}
	var accepted, duplicate, failed atomic.Int64

	indexes := make(chan int, workers*2)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				ack, err := c.Submit(ctx, reqs[i])
				switch {
				case err != nil:
					failed.Add(1)
				case ack.Duplicate:
					duplicate.Add(1)
					res.IDs[i] = ack.ID
				default:
					accepted.Add(1)
					res.IDs[i] = ack.ID
				}
			}
		}()
	}

	sent := 0
feed:
	for i := range reqs {
		select {
		case <-ctx.Done():
			break feed
		case indexes <- i:
			sent++
		}
	}
	close(indexes)
	wg.Wait()

	res.Accepted = int(accepted.Load())
	res.Duplicate = int(duplicate.Load())
	res.Failed = int(failed.Load()) + len(reqs) - sent
	return res
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader = http.NoBody
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		se := &StatusError{StatusCode: resp.StatusCode}
		var payload struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &payload) == nil {
			se.Code, se.Message = payload.Code, payload.Message
		}
		return se
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
