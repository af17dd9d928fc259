package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// TicketEvent is a ticket submission event delivered by the stream.
type TicketEvent struct {
	Kind        string    `json:"kind"`
	Hash        string    `json:"hash"`
	Signer      string    `json:"signer,omitempty"`
	Status      string    `json:"status"`
	Ledger      uint32    `json:"ledger,omitempty"`
	Error       string    `json:"error,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

// StreamTickets reads the server's ticket event stream and calls fn for each
// event until ctx is done or the server closes the stream.
// kind filters by event kind ("submitted" or "confirmed"); empty means all.
func (c *Client) StreamTickets(ctx context.Context, kind string, fn func(*TicketEvent)) error {
	u := c.baseURL + "/api/stream/tickets"
	if kind != "" {
		u += "?" + url.Values{"kind": {kind}}.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	// The stream outlives any request timeout.
	httpClient := *c.httpClient
	httpClient.Timeout = 0

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	var eventType string
	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if err := c.dispatchEvent(eventType, data.String(), fn); err != nil {
				return err
			}
			eventType = ""
			data.Reset()
		case strings.HasPrefix(line, ":"):
			// comment / keepalive
		case strings.HasPrefix(line, "event:"):
			eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("stream read failed: %w", err)
	}
	return nil
}

func (c *Client) dispatchEvent(eventType, data string, fn func(*TicketEvent)) error {
	switch eventType {
	case "", "connected":
		return nil
	case "error":
		var errResp struct {
			Error string `json:"error"`
		}
		json.Unmarshal([]byte(data), &errResp)
		if errResp.Error == "" {
			errResp.Error = "An API error occurred"
		}
		return fmt.Errorf("stream error: %s", errResp.Error)
	}

	var event TicketEvent
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		c.logger.Warn("failed to decode ticket event", "event", eventType, "error", err)
		return nil
	}
	fn(&event)
	return nil
}
