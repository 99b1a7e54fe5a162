package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"fictionbridge/internal/config"
)

const userAgent = "fictionbridge/0.1.0"

// Event names a notification type.
type Event string

const (
	// EventSidecarDisconnected fires when the worker goes away without a stop request.
	EventSidecarDisconnected Event = "sidecar_disconnected"
	// EventHealthCheckFailed fires when the post-start probe fails.
	EventHealthCheckFailed Event = "health_check_failed"
	// EventError reports a daemon-level failure.
	EventError Event = "error"
	// EventTest is sent by the test-notify command.
	EventTest Event = "test"
)

// Payload carries event-specific fields.
type Payload map[string]string

// Service defines the notification surface exposed to the daemon.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:   topic,
		client:     &http.Client{Timeout: timeout},
		disconnect: cfg.Notifications.Disconnect,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint   string
	client     *http.Client
	disconnect bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, fields Payload) error {
	data, ok := n.format(event, fields)
	if !ok {
		return nil
	}
	return n.send(ctx, data)
}

func (n *ntfyService) format(event Event, fields Payload) (payload, bool) {
	get := func(key string) string { return strings.TrimSpace(fields[key]) }

	switch event {
	case EventSidecarDisconnected:
		if !n.disconnect {
			return payload{}, false
		}
		message := "Worker disconnected"
		if reason := get("reason"); reason != "" {
			message += ": " + reason
		}
		if pid := get("pid"); pid != "" {
			message += fmt.Sprintf(" (pid %s)", pid)
		}
		return payload{
			title:    "fictionbridge - Worker Down",
			message:  message,
			tags:     []string{"fictionbridge", "sidecar", "disconnected"},
			priority: "high",
		}, true
	case EventHealthCheckFailed:
		if !n.disconnect {
			return payload{}, false
		}
		return payload{
			title:   "fictionbridge - Health Check Failed",
			message: fmt.Sprintf("%s failed: %s", get("method"), get("error")),
			tags:    []string{"fictionbridge", "sidecar", "health"},
		}, true
	case EventError:
		var builder strings.Builder
		builder.WriteString("Error")
		if label := get("context"); label != "" {
			builder.WriteString(" with ")
			builder.WriteString(label)
		}
		builder.WriteString(": ")
		if msg := get("error"); msg != "" {
			builder.WriteString(msg)
		} else {
			builder.WriteString("unknown")
		}
		return payload{
			title:    "fictionbridge - Error",
			message:  builder.String(),
			tags:     []string{"fictionbridge", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return payload{
			title:    "fictionbridge - Test",
			message:  "Notification system test",
			tags:     []string{"fictionbridge", "test"},
			priority: "low",
		}, true
	default:
		return payload{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
