// Package report turns proposal HTML into PDF through a Gotenberg instance.
package report

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/solution-studio/ai-studio/internal/platform/httpx"
)

const (
	maxErrorBody = 512
	maxPDFBytes  = 32 << 20
)

// ErrRender marks a conversion Gotenberg refused or could not finish.
var ErrRender = fmt.Errorf("report: pdf conversion failed: %w", httpx.ErrUnavailable)

// Paper describes the printed page in inches.
type Paper struct {
	Width, Height float64
	Margin        float64
	Landscape     bool
}

// Paper presets.
var (
	PaperA4     = Paper{Width: 8.27, Height: 11.7, Margin: 0.5}
	PaperLetter = Paper{Width: 8.5, Height: 11, Margin: 0.5}
)

// Option customises a Client.
type Option func(*Client)

// WithTimeout bounds every request made by the client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithPaper sets the page geometry sent with each conversion.
func WithPaper(p Paper) Option {
	return func(c *Client) { c.paper = p }
}

// Client is a minimal Gotenberg client covering health and the Chromium
// HTML route.
type Client struct {
	baseURL string
	http    *http.Client
	paper   Paper
}

// NewClient builds a client for the Gotenberg instance at baseURL. Pages
// default to A4 with half-inch margins.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		paper:   PaperA4,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ping calls Gotenberg's health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("report: ping: %v: %w", err, httpx.ErrUnavailable)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("report: ping: status %d: %w", resp.StatusCode, httpx.ErrUnavailable)
	}
	return nil
}

// RenderHTML converts a self-contained HTML document to PDF.
func (c *Client) RenderHTML(ctx context.Context, html string) ([]byte, error) {
	body, contentType, err := c.form(html)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/forms/chromium/convert/html", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRender, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("%w: status %d: %s", ErrRender, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	pdf, err := io.ReadAll(io.LimitReader(resp.Body, maxPDFBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrRender, err)
	}
	switch {
	case len(pdf) > maxPDFBytes:
		return nil, fmt.Errorf("%w: document exceeds %d bytes", ErrRender, maxPDFBytes)
	case !bytes.HasPrefix(pdf, []byte("%PDF-")):
		return nil, fmt.Errorf("%w: response is not a pdf", ErrRender)
	}
	return pdf, nil
}

func (c *Client) form(html string) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	// Gotenberg needs the entry document to be named index.html.
	part, err := w.CreateFormFile("files", "index.html")
	if err != nil {
		return nil, "", err
	}
	if _, err := io.WriteString(part, html); err != nil {
		return nil, "", err
	}
	inches := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	fields := [][2]string{
		{"printBackground", "true"},
		{"paperWidth", inches(c.paper.Width)},
		{"paperHeight", inches(c.paper.Height)},
		{"marginTop", inches(c.paper.Margin)},
		{"marginBottom", inches(c.paper.Margin)},
		{"marginLeft", inches(c.paper.Margin)},
		{"marginRight", inches(c.paper.Margin)},
		{"landscape", strconv.FormatBool(c.paper.Landscape)},
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
