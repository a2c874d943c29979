// Package loki pushes security events to Grafana Loki.
package loki

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"workforce/backend/internal/telemetry"
)

const (
	jobLabel       = "workforce-auth"
	defaultTimeout = 5 * time.Second
)

// PushRequest is the Loki push API request body (v1).
type PushRequest struct {
	Streams []Stream `json:"streams"`
}

// Stream is a single stream with labels and log entries.
type Stream struct {
	Stream map[string]string `json:"stream"`
	Values [][]string        `json:"values"` // [timestamp_ns, log_line]
}

// Label values may only carry these characters; everything else becomes '_'.
var labelSanitize = regexp.MustCompile(`[^a-zA-Z0-9_\-:]`)

// Client is a telemetry.EventEmitter that writes each event as one JSON log line.
// Labels are kept low-cardinality: job, event_type and status.
type Client struct {
	pushURL string
	http    *http.Client
}

// NewClient returns a Client for the Loki instance at baseURL (e.g. http://localhost:3100).
// Returns nil when baseURL is empty so callers can treat Loki as optional.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		pushURL: strings.TrimSuffix(baseURL, "/") + "/loki/api/v1/push",
		http:    httpClient,
	}
}

// Emit pushes event. A nil Client or event is a no-op.
func (c *Client) Emit(ctx context.Context, event *telemetry.SecurityEvent) error {
	if c == nil || event == nil {
		return nil
	}
	line, err := json.Marshal(event)
	if err != nil {
		return err
	}
	ts := event.OccurredAt
	if ts.IsZero() {
		ts = time.Now()
	}
	labels := map[string]string{"job": jobLabel}
	addLabel(labels, "event_type", event.Type)
	addLabel(labels, "status", event.Status)
	return c.push(ctx, PushRequest{Streams: []Stream{{
		Stream: labels,
		Values: [][]string{{strconv.FormatInt(ts.UnixNano(), 10), string(line)}},
	}}})
}

func (c *Client) push(ctx context.Context, body PushRequest) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.pushURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("loki: push returned %s", resp.Status)
	}
	return nil
}

func addLabel(labels map[string]string, key, value string) {
	if v := labelSanitize.ReplaceAllString(strings.TrimSpace(value), "_"); v != "" {
		labels[key] = v
	}
}
