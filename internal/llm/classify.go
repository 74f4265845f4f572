package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// StatusError is an HTTP-level failure from the remote service. It is never
// network-class: the environment reached the service and got an answer, so
// the chain keeps trying other attempts and models.
type StatusError struct {
	Model      string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = "request failed"
	}
	return fmt.Sprintf("llm error (status=%d model=%s): %s", e.StatusCode, e.Model, msg)
}

// transientInfraHints are string fragments that mark an error as
// environment-level even when it arrives untyped (wrapped by client
// libraries or the OS).
var transientInfraHints = []string{
	"connection refused",
	"connection reset",
	"no such host",
	"network is unreachable",
	"dial tcp",
	"broken pipe",
	"temporary failure",
	"tls handshake",
	"proxyconnect",
	"i/o timeout",
}

// IsNetworkUnreachable reports whether err is a transport/DNS/timeout-class
// failure. These terminate the whole fallback chain: they indicate the
// environment is unusable, not the model.
func IsNetworkUnreachable(err error) bool {
	if err == nil {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		return true
	}
	text := strings.ToLower(err.Error())
	for _, hint := range transientInfraHints {
		if strings.Contains(text, hint) {
			return true
		}
	}
	return false
}
