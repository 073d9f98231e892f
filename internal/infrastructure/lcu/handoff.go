package lcu

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	apperrors "github.com/willckim/Rift-Architect/pkg/errors"
)

// Credentials grants access to the local client's REST and event surfaces.
// They live exactly as long as the lockfile describes a running client and
// are owned by the Discovery; everyone else gets a request-capable handle.
type Credentials struct {
	Name      string
	ProcessID int
	Port      int
	Secret    string
	Scheme    string
}

// BaseURL returns the loopback REST base for these credentials.
func (c Credentials) BaseURL() string {
	return fmt.Sprintf("%s://127.0.0.1:%d", c.Scheme, c.Port)
}

// WebsocketURL returns the event-bus endpoint for these credentials.
func (c Credentials) WebsocketURL() string {
	return fmt.Sprintf("wss://127.0.0.1:%d/", c.Port)
}

// AuthHeader returns the Basic auth header value (user "riot").
func (c Credentials) AuthHeader() string {
	token := base64.StdEncoding.EncodeToString([]byte("riot:" + c.Secret))
	return "Basic " + token
}

// Valid reports whether the credentials can produce requests.
func (c Credentials) Valid() bool {
	return c.Port > 0 && c.Secret != ""
}

// ParseHandoff parses the client's lockfile content:
// name:pid:port:secret:scheme. Fewer than five fields is malformed.
// Parsing is pure: equal bytes yield equal credentials.
func ParseHandoff(content string) (Credentials, error) {
	fields := strings.Split(strings.TrimSpace(content), ":")
	if len(fields) < 5 {
		return Credentials{}, apperrors.NewMalformedError("handoff file has fewer than five fields")
	}

	pid, err := strconv.Atoi(fields[1])
	if err != nil {
		return Credentials{}, apperrors.NewMalformedError("handoff pid is not numeric")
	}
	port, err := strconv.Atoi(fields[2])
	if err != nil {
		return Credentials{}, apperrors.NewMalformedError("handoff port is not numeric")
	}
	if port <= 0 || fields[3] == "" {
		return Credentials{}, apperrors.NewMalformedError("handoff port or secret empty")
	}

	return Credentials{
		Name:      fields[0],
		ProcessID: pid,
		Port:      port,
		Secret:    fields[3],
		Scheme:    fields[4],
	}, nil
}
