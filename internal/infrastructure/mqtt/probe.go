package mqtt

import (
	"context"
	"fmt"

	"github.com/nerrad567/gray-logic-nhc2/internal/infrastructure/config"
)

// MQTT 3.1.1 CONNACK return codes.
const (
	CodeAccepted              byte = 0
	CodeUnacceptableProtocol  byte = 1
	CodeIdentifierRejected    byte = 2
	CodeServerUnavailable     byte = 3
	CodeBadUsernameOrPassword byte = 4
	CodeNotAuthorized         byte = 5
	codeNetworkError          byte = 0xFE
	codeProtocolViolation     byte = 0xFF
)

// ReasonText describes a CONNACK return code.
func ReasonText(code byte) string {
	switch code {
	case CodeAccepted:
		return "Connection accepted"
	case CodeUnacceptableProtocol:
		return "Connection refused - incorrect protocol version"
	case CodeIdentifierRejected:
		return "Connection refused - invalid client identifier"
	case CodeServerUnavailable:
		return "Connection refused - server unavailable"
	case CodeBadUsernameOrPassword:
		return "Connection refused - bad username or password"
	case CodeNotAuthorized:
		return "Connection refused - not authorised"
	case codeNetworkError:
		return "Network error"
	case codeProtocolViolation:
		return "Protocol violation"
	default:
		return fmt.Sprintf("Unknown return code %d", code)
	}
}

// ProbeResult is the outcome of a login probe.
type ProbeResult struct {
	Code   byte
	Reason string
	Err    error
}

// OK reports whether the controller accepted the credentials.
func (r ProbeResult) OK() bool {
	return r.Err == nil && r.Code == CodeAccepted
}

// Probe connects once with cfg's credentials, disconnects, and reports
// the controller's answer. It never retries. The attempt is bounded by
// cfg.ConnectTimeout and by ctx.
func Probe(ctx context.Context, cfg config.ControllerConfig, logger Logger) ProbeResult {
	c, err := New(cfg, logger)
	if err != nil {
		return ProbeResult{Reason: err.Error(), Err: err}
	}
	return c.probe(ctx)
}

func (c *Client) probe(ctx context.Context) ProbeResult {
	timeout := c.cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan ProbeResult, 1)
	c.SetHandlers(Handlers{
		OnConnect: func(code byte, err error) {
			res := ProbeResult{Code: code, Reason: ReasonText(code), Err: err}
			if err != nil && code == CodeAccepted {
				res.Reason = err.Error()
			}
			done <- res
		},
	})

	if err := c.Connect(ctx); err != nil {
		return ProbeResult{Reason: err.Error(), Err: err}
	}
	res := <-done
	c.Disconnect()
	return res
}
