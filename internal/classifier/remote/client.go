// Package remote talks to an out-of-process piece classification model over HTTP.
package remote

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	xdraw "golang.org/x/image/draw"

	"github.com/park285/chessfen/internal/classifier"
	"github.com/park285/chessfen/internal/domain"
)

// HeaderProvider allows injecting per-request headers such as an API key.
type HeaderProvider func() map[string]string

type Client struct {
	baseURL string
	http    *fasthttp.Client
	headers HeaderProvider

	defaultTimeout time.Duration
	retryMax       int
	cellSize       int
}

var (
	_ classifier.BatchClassifier = (*Client)(nil)
	_ classifier.HealthChecker   = (*Client)(nil)
)

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithMaxConnsPerHost(n int) Option {
	return func(c *Client) { c.http.MaxConnsPerHost = n }
}

func WithHeaderProvider(h HeaderProvider) Option {
	return func(c *Client) { c.headers = h }
}

func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

// WithCellSize resamples every cell to size x size before upload. Zero sends cells as they are.
func WithCellSize(size int) Option {
	return func(c *Client) { c.cellSize = size }
}

// WithDialer replaces the transport dialer, mainly for in-memory tests.
func WithDialer(dial fasthttp.DialFunc) Option {
	return func(c *Client) { c.http.Dial = dial }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 64},
		defaultTimeout: 10 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Classify(ctx context.Context, cell image.Image) (domain.PieceLabel, error) {
	labels, err := c.ClassifyBatch(ctx, []image.Image{cell})
	if err != nil {
		return domain.PieceLabel{}, err
	}
	return labels[0], nil
}

func (c *Client) ClassifyBatch(ctx context.Context, cells []image.Image) ([]domain.PieceLabel, error) {
	req := ClassifyRequest{Cells: make([]CellPayload, len(cells))}
	for i, cell := range cells {
		encoded, err := c.encodeCell(cell)
		if err != nil {
			return nil, fmt.Errorf("encode cell %d: %w", i, err)
		}
		req.Cells[i] = CellPayload{Index: i, Image: encoded}
	}

	var resp ClassifyResponse
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/v1/classify", req, &resp, true); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", classifier.ErrUnavailable, err)
	}

	labels := make([]domain.PieceLabel, len(cells))
	seen := make([]bool, len(cells))
	for _, l := range resp.Labels {
		if l.Index < 0 || l.Index >= len(cells) {
			return nil, fmt.Errorf("%w: label index %d out of range", classifier.ErrUnavailable, l.Index)
		}
		piece, err := domain.ParseLabel(l.Label)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", classifier.ErrUnavailable, err)
		}
		labels[l.Index] = domain.PieceLabel{Piece: piece, Confidence: l.Confidence}
		seen[l.Index] = true
	}
	for i, ok := range seen {
		if !ok {
			return nil, fmt.Errorf("%w: no label for cell %d", classifier.ErrUnavailable, i)
		}
	}
	return labels, nil
}

// Health reports whether the model server is reachable and has a model loaded.
func (c *Client) Health(ctx context.Context) error {
	var resp HealthResponse
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/v1/health", nil, &resp, false); err != nil {
		return fmt.Errorf("%w: %v", classifier.ErrUnavailable, err)
	}
	if !resp.ModelLoaded {
		return fmt.Errorf("%w: model not loaded (status=%s)", classifier.ErrUnavailable, resp.Status)
	}
	return nil
}

func (c *Client) encodeCell(cell image.Image) (string, error) {
	img := cell
	if c.cellSize > 0 {
		dst := image.NewRGBA(image.Rect(0, 0, c.cellSize, c.cellSize))
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), cell, cell.Bounds(), xdraw.Src, nil)
		img = dst
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in any, out any, retry bool) error {
	url := c.baseURL + path
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(method)
	req.SetRequestURI(url)
	req.Header.SetContentType("application/json")

	if c.headers != nil {
		for k, v := range c.headers() {
			if strings.TrimSpace(k) != "" && strings.TrimSpace(v) != "" {
				req.Header.Set(k, v)
			}
		}
	}

	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		req.SetBody(payload)
	}

	attempts := 1
	if retry && c.retryMax > 0 {
		attempts = c.retryMax
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx))
		if err != nil {
			if attempt == attempts {
				return fmt.Errorf("request failed: %w", err)
			}
			lastErr = err
			if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return lastErr
			}
			continue
		}

		status := resp.StatusCode()
		if status < 200 || status >= 300 {
			err := fmt.Errorf("classifier api error: status=%d body=%s", status, truncate(string(resp.Body()), 512))
			if attempt == attempts || !shouldRetryStatus(status) {
				return err
			}
			lastErr = err
			if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return lastErr
			}
			continue
		}

		if out != nil {
			if err := json.Unmarshal(resp.Body(), out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
		}
		return nil
	}

	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return lastErr
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(c.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	attempt = max(1, min(attempt, 6))
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
}

func shouldRetryStatus(code int) bool {
	switch code {
	case fasthttp.StatusInternalServerError, fasthttp.StatusBadGateway,
		fasthttp.StatusServiceUnavailable, fasthttp.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
