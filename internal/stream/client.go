package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jakifasty/orbiteye/internal/metrics"
)

// writeTimeout bounds each individual SSE write.
const writeTimeout = 30 * time.Second

// client writes the messages of one SSE connection and counts what it sent.
type client struct {
	w       http.ResponseWriter
	flusher http.Flusher
	rc      *http.ResponseController
	ip      string
	logger  *slog.Logger

	messagesSent int64
	bytesSent    int64
}

// sendJSON writes v as one "data:" message. event is the metrics label; the
// payload carries its own "type" field.
func (c *client) sendJSON(event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}

	c.extendDeadline()
	n, err := fmt.Fprintf(c.w, "data: %s\n\n", data)
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}

	c.flusher.Flush()
	c.messagesSent++
	c.bytesSent += int64(n)
	metrics.StreamMessage(event)

	return nil
}

// sendKeepalive writes an SSE comment (":\n\n").
func (c *client) sendKeepalive() error {
	c.extendDeadline()
	n, err := fmt.Fprint(c.w, ":\n\n")
	if err != nil {
		return fmt.Errorf("keepalive write: %w", err)
	}

	c.flusher.Flush()
	c.bytesSent += int64(n)
	metrics.StreamMessage("keepalive")

	return nil
}

// extendDeadline pushes the write deadline past the next write. The server's
// WriteTimeout is cleared for streams, so each write carries its own bound.
func (c *client) extendDeadline() {
	if err := c.rc.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		c.logger.Debug("could not set write deadline", "remote_ip", c.ip, "error", err)
	}
}
