package client

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"chemvis/pkg/contracts/events"
)

// Watch subscribes to dataset events and calls fn for each created or
// evicted event until ctx is cancelled or the server goes away. A cancelled
// ctx or a normal close returns nil.
func (c *Client) Watch(ctx context.Context, fn func(events.DatasetEvent)) error {
	const op = "watch"

	u := *c.baseURL
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = u.Path + "/ws"

	header := http.Header{}
	if c.cfg.Username != "" {
		req := &http.Request{Header: header}
		req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: c.cfg.Timeout,
	}
	conn, resp, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		terr := &TransportError{Op: op, Kind: KindNetwork, Err: err}
		if resp != nil {
			terr.Kind = KindStatus
			terr.StatusCode = resp.StatusCode
		}
		return terr
	}
	defer conn.Close()

	// Unblock ReadMessage when the caller gives up.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = conn.Close()
	})
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return &TransportError{Op: op, Kind: KindNetwork, Err: err}
		}

		var event events.DatasetEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return &TransportError{Op: op, Kind: KindDecode, Err: err}
		}

		switch event.Type {
		case events.MessageTypeDatasetCreated, events.MessageTypeDatasetEvicted:
			fn(event)
		case events.MessageTypeConnect:
			c.logger.DebugContext(ctx, "subscribed to dataset events", slog.String("subscription_id", event.ID))
		default:
			c.logger.DebugContext(ctx, "ignoring event", slog.String("type", string(event.Type)))
		}
	}
}
