package consensus

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"torpathsim/internal/model"
)

// Fetcher downloads consensus documents from a directory mirror.
type Fetcher struct {
	url  string
	http *http.Client
}

// NewFetcher creates a fetcher for the given consensus URL, e.g.
// http://host/tor/status-vote/current/consensus.
func NewFetcher(url string, timeout time.Duration) *Fetcher {
	return &Fetcher{
		url: url,
		http: &http.Client{
			Timeout: timeout,
		},
	}
}

// Fetch downloads and parses the consensus. If the transfer breaks off part
// way, the relays parsed so far are returned along with an error wrapping
// ErrTruncated.
func (f *Fetcher) Fetch(ctx context.Context) ([]*model.Relay, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, err
	}

	log.Infof("Downloading consensus from %s", f.url)

	res, err := f.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		msg := strings.TrimSpace(string(body))
		if msg != "" {
			return nil, fmt.Errorf("request failed: %s: %s",
				res.Status, msg)
		}
		return nil, fmt.Errorf("request failed: %s", res.Status)
	}

	return Parse(res.Body)
}
