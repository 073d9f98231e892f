package lcu

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/willckim/Rift-Architect/pkg/errors"
)

// Client is the authenticated REST capability over the local client.
// The client ships a self-signed certificate, so chain verification is
// disabled, but only for loopback addresses; the transport refuses to
// dial anything else.
type Client struct {
	creds Credentials
	http  *http.Client
}

// NewClient builds a REST client for the given credentials.
func NewClient(creds Credentials, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, _, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, err
			}
			if ip := net.ParseIP(host); ip == nil || !ip.IsLoopback() {
				return nil, fmt.Errorf("refusing non-loopback dial to %s", addr)
			}
			var d net.Dialer
			return d.DialContext(ctx, network, addr)
		},
	}
	return &Client{
		creds: creds,
		http: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
	}
}

// Credentials returns a copy of the credentials behind this client.
func (c *Client) Credentials() Credentials {
	return c.creds
}

// Get issues an authenticated GET and decodes the JSON response into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	if !c.creds.Valid() {
		return apperrors.NewNotConnectedError("no client credentials")
	}

	url := c.creds.BaseURL() + "/" + strings.TrimPrefix(path, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", c.creds.AuthHeader())
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("client REST %s returned %d", path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}

// GameflowPhase fetches the raw phase string.
func (c *Client) GameflowPhase(ctx context.Context) (string, error) {
	var phase string
	if err := c.Get(ctx, "/lol-gameflow/v1/gameflow-phase", &phase); err != nil {
		return "", err
	}
	return phase, nil
}

// ChampSelectSession fetches the current champ-select session.
func (c *Client) ChampSelectSession(ctx context.Context) (*ChampSelectSession, error) {
	var session ChampSelectSession
	if err := c.Get(ctx, "/lol-champ-select/v1/session", &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// EndOfGameStats fetches the end-of-game scoreboard blob.
func (c *Client) EndOfGameStats(ctx context.Context) (json.RawMessage, error) {
	var blob json.RawMessage
	if err := c.Get(ctx, "/lol-end-of-game/v1/eog-stats-block", &blob); err != nil {
		return nil, err
	}
	return blob, nil
}

// CurrentSummoner fetches the local player's identity.
func (c *Client) CurrentSummoner(ctx context.Context) (*Summoner, error) {
	var summoner Summoner
	if err := c.Get(ctx, "/lol-summoner/v1/current-summoner", &summoner); err != nil {
		return nil, err
	}
	return &summoner, nil
}
