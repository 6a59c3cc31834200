package asset

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ImageHit is one search result.
type ImageHit struct {
	URL   string `json:"img_src"`
	Title string `json:"title"`
}

// Searcher finds candidate images for a query.
type Searcher interface {
	SearchImages(ctx context.Context, query string) ([]ImageHit, error)
}

// SearXNG queries a SearXNG instance's JSON API in the images category.
type SearXNG struct {
	BaseURL string
	HTTP    *http.Client
	// MaxBytes caps downloaded image size.
	MaxBytes int64
}

func NewSearXNG(baseURL string) *SearXNG {
	return &SearXNG{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		HTTP:     &http.Client{Timeout: 30 * time.Second},
		MaxBytes: 10 << 20,
	}
}

func (s *SearXNG) SearchImages(ctx context.Context, query string) ([]ImageHit, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("categories", "images")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BaseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := s.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("searxng: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("searxng: status %d", resp.StatusCode)
	}
	var body struct {
		Results []ImageHit `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("searxng: decode: %w", err)
	}
	out := body.Results[:0]
	for _, h := range body.Results {
		if strings.HasPrefix(h.URL, "http://") || strings.HasPrefix(h.URL, "https://") {
			out = append(out, h)
		}
	}
	return out, nil
}

// Fetch downloads one image, refusing bodies over MaxBytes.
func (s *SearXNG) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}
	limit := s.MaxBytes
	if limit <= 0 {
		limit = 10 << 20
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("fetch %s: larger than %d bytes", rawURL, limit)
	}
	return data, nil
}
