package sse

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kbukum/flowkit/logger"
)

// KeepAliveInterval is how often an idle stream receives a comment line.
var KeepAliveInterval = 30 * time.Second

// ServeSSE streams events matching topic to w until the request ends or the
// hub stops. An invalid topic glob is answered with 400.
func ServeSSE(hub *Hub, w http.ResponseWriter, r *http.Request, clientID, topic string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	client, err := NewClient(clientID, topic)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Streams outlive the server's write timeout.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		hub.log.Debug("write deadline not cleared", logger.Fields("client_id", clientID, logger.FieldError, err.Error()))
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	if !hub.Register(client) {
		http.Error(w, "event stream closed", http.StatusServiceUnavailable)
		return
	}
	defer hub.Unregister(client)

	hello, err := encode(Event{
		Type:  EventTypeConnected,
		Topic: client.topic,
		Time:  hub.now(),
		Data:  map[string]string{"client_id": clientID},
	})
	if err == nil {
		writeFrame(w, hello)
		flusher.Flush()
	}

	keepAlive := time.NewTicker(KeepAliveInterval)
	defer keepAlive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-client.frames:
			if !ok {
				return
			}
			writeFrame(w, f)
			flusher.Flush()
		case t := <-keepAlive.C:
			fmt.Fprintf(w, ": keepalive %d\n\n", t.Unix())
			flusher.Flush()
		}
	}
}

func writeFrame(w io.Writer, f frame) {
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", f.event, f.data)
}
