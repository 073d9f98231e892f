package eventbus

// Internal event types routed between daemon components.
const (
	EventTypeClientConnected    = "client_connected"
	EventTypeClientDisconnected = "client_disconnected"
	EventTypePhaseChanged       = "phase_changed"
	EventTypeKeyExpired         = "key_expired"
	EventTypeRateLimited        = "rate_limited"
	EventTypeTelemetryUp        = "telemetry_available"
	EventTypeTelemetryDown      = "telemetry_unavailable"
)

// PhaseChangedPayload carries a phase transition.
type PhaseChangedPayload struct {
	From string
	To   string
}

// RateLimitedPayload carries the server-indicated backoff.
type RateLimitedPayload struct {
	RetryAfterSeconds int
}
