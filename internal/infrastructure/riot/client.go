package riot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
)

// ClientConfig names the cloud hosts. Region is the platform host
// ("na1", "euw1", …); Routing is the regional host ("americas", …).
type ClientConfig struct {
	Region  string
	Routing string
}

// Client builds scheduler tasks against the cloud API. It owns its own
// HTTP client with normal certificate verification, never the loopback
// transport that skips it.
type Client struct {
	cfg       ClientConfig
	http      *http.Client
	scheduler *Scheduler
}

// NewClient creates a cloud API client dispatching through the scheduler.
func NewClient(cfg ClientConfig, scheduler *Scheduler) *Client {
	return &Client{
		cfg:       cfg,
		http:      &http.Client{},
		scheduler: scheduler,
	}
}

// PlatformURL joins a path onto the platform host.
func (c *Client) PlatformURL(path string) string {
	return fmt.Sprintf("https://%s.api.riotgames.com%s", c.cfg.Region, path)
}

// RegionalURL joins a path onto the regional-routing host.
func (c *Client) RegionalURL(path string) string {
	return fmt.Sprintf("https://%s.api.riotgames.com%s", c.cfg.Routing, path)
}

// Get enqueues a GET against the given absolute URL and returns the
// outcome channel. The API key is injected at dispatch time.
func (c *Client) Get(url string) <-chan Outcome {
	return c.scheduler.Enqueue(c.GetTask(url))
}

// GetTask builds the scheduler task for a GET without enqueueing it.
func (c *Client) GetTask(url string) Task {
	return func(ctx context.Context, apiKey string) (*Result, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("X-Riot-Token", apiKey)
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}

		result := &Result{
			StatusCode: resp.StatusCode,
			Body:       body,
			RateLimit:  resp.Header.Get("X-App-Rate-Limit"),
		}
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if seconds, err := strconv.Atoi(ra); err == nil {
				result.RetryAfter = seconds
			}
		}
		return result, nil
	}
}
