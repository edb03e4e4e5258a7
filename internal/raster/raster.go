// Package raster is the client for the external document-rendering
// collaborator: it submits printable HTML and receives a rasterized image
// of the typeset page flow.
package raster

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Result is one captured render.
type Result struct {
	Image           []byte
	WidthPx         int
	HeightPx        int
	TypesetComplete bool
}

// Client talks to the render service.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	settleDelay time.Duration
}

// New creates a client for the render service at baseURL.
func New(baseURL string) *Client {
	return &Client{
		baseURL:     baseURL,
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		settleDelay: time.Second,
	}
}

type renderRequest struct {
	HTML        string `json:"html"`
	PageWidthMM int    `json:"page_width_mm"`
	MarginMM    int    `json:"margin_mm"`
	Scale       int    `json:"scale"`
	TypesetMath bool   `json:"typeset_math"`
}

type renderResponse struct {
	ImageBase64     string `json:"image_base64"`
	WidthPx         int    `json:"width_px"`
	HeightPx        int    `json:"height_px"`
	TypesetComplete bool   `json:"typeset_complete"`
}

// Capture renders the given HTML at A4 width and returns the raster. When
// the service cannot confirm that math typesetting finished, the client
// waits a bounded settle delay and captures once more; that fallback is a
// known race on "finished enough", not a synchronization guarantee.
func (c *Client) Capture(ctx context.Context, html string) (*Result, error) {
	res, err := c.render(ctx, html)
	if err != nil {
		return nil, err
	}
	if res.TypesetComplete {
		return res, nil
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(c.settleDelay):
	}
	return c.render(ctx, html)
}

func (c *Client) render(ctx context.Context, html string) (*Result, error) {
	body, err := json.Marshal(renderRequest{
		HTML:        html,
		PageWidthMM: 210,
		MarginMM:    15,
		Scale:       2,
		TypesetMath: true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal render request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/render", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create render request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("render service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("render service returned %d: %s", resp.StatusCode, msg)
	}

	var rr renderResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return nil, fmt.Errorf("decode render response: %w", err)
	}
	img, err := base64.StdEncoding.DecodeString(rr.ImageBase64)
	if err != nil {
		return nil, fmt.Errorf("decode render image: %w", err)
	}
	if rr.WidthPx <= 0 || rr.HeightPx <= 0 {
		return nil, fmt.Errorf("render service reported invalid dimensions %dx%d", rr.WidthPx, rr.HeightPx)
	}

	return &Result{
		Image:           img,
		WidthPx:         rr.WidthPx,
		HeightPx:        rr.HeightPx,
		TypesetComplete: rr.TypesetComplete,
	}, nil
}
