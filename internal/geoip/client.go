package geoip

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// ErrNoAnswer is returned when the service replies successfully but with an
// empty body.
var ErrNoAnswer = errors.New("empty country answer")

// Client is a thin HTTP client for an ipinfo-style country endpoint, which
// answers GET <base>/<ip>/country with the two-letter code as plain text.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a client for the given base URL (e.g.
// https://ipinfo.io). token is sent as a bearer token when set. rps caps the
// request rate; zero or less means unlimited.
func NewClient(baseURL, token string, timeout time.Duration, rps float64) *Client {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http: &http.Client{
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Country looks up the country code of ip.
func (c *Client) Country(ctx context.Context, ip string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	endpoint := c.baseURL + "/" + url.PathEscape(ip) + "/country"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "text/plain")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		msg := strings.TrimSpace(string(body))
		if msg != "" {
			return "", fmt.Errorf("request failed: %s: %s", res.Status, msg)
		}
		return "", fmt.Errorf("request failed: %s", res.Status)
	}

	line, err := bufio.NewReader(io.LimitReader(res.Body, 64)).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	country := strings.ToUpper(strings.TrimSpace(line))
	if country == "" {
		return "", ErrNoAnswer
	}
	return country, nil
}
