package dispatchsdk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
)

// StreamEvent is one message of the live update stream.
type StreamEvent struct {
	Type     string    `json:"type"`
	Call     *Call     `json:"call,omitempty"`
	Unit     *Unit     `json:"unit,omitempty"`
	Incident *Incident `json:"incident,omitempty"`
}

// StreamCallRemoved events carry only the id of a call the subscriber may
// no longer see.
const (
	StreamCall        = "call"
	StreamCallRemoved = "call_removed"
	StreamUnit        = "unit"
	StreamIncident    = "incident"
)

// Stream connects to the live update stream and calls fn for every event
// until ctx is cancelled or the server closes the connection. Cancellation
// is a clean exit.
func (c *Client) Stream(ctx context.Context, fn func(StreamEvent)) error {
	wsURL, err := c.websocketURL("/ws/calls")
	if err != nil {
		return err
	}
	header := http.Header{}
	c.authorize(header)
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			return &APIError{StatusCode: resp.StatusCode, Body: resp.Status}
		}
		return fmt.Errorf("connect stream: %w", err)
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			_ = conn.Close()
		case <-stop:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("stream closed: %w", err)
		}
		var evt StreamEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			continue
		}
		fn(evt)
	}
}

// StreamCalls is Stream restricted to call updates. A removal arrives as an
// ended call carrying only its id.
func (c *Client) StreamCalls(ctx context.Context, fn func(Call)) error {
	return c.Stream(ctx, func(evt StreamEvent) {
		if evt.Call == nil {
			return
		}
		switch evt.Type {
		case StreamCall:
			fn(*evt.Call)
		case StreamCallRemoved:
			fn(Call{ID: evt.Call.ID, Ended: true})
		}
	})
}

func (c *Client) websocketURL(path string) (string, error) {
	u, err := url.Parse(c.base())
	if err != nil {
		return "", fmt.Errorf("invalid api url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported api url scheme: %s", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}
