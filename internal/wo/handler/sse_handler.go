package handler

import (
	"fmt"
	"io"
	"time"

	"github.com/Tao-Zi-Liu/WoInsert/internal/wo/sse"
	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
)

// SSEHandler 推送已提交批次，历史列表据此刷新
type SSEHandler struct {
	hub       *sse.Hub
	heartbeat time.Duration
}

func NewSSEHandler(hub *sse.Hub) *SSEHandler {
	return &SSEHandler{hub: hub, heartbeat: 30 * time.Second}
}

// Stream GET /api/v1/sse/events?token=xxx
func (h *SSEHandler) Stream(c *gin.Context) {
	client := &sse.Client{
		ID:     ulid.Make().String(),
		UserID: GetUserID(c),
		Events: make(chan sse.Event, 64),
	}
	h.hub.Register(client)
	defer h.hub.Unregister(client.ID)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	writeEvent(c.Writer, "connected", fmt.Sprintf(`{"client_id":%q}`, client.ID))
	// 断线后5秒重连
	io.WriteString(c.Writer, "retry: 5000\n\n")
	c.Writer.Flush()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-client.Events:
			if !ok {
				return false
			}
			writeEvent(w, event.EventType, event.Data)
		case <-heartbeat.C:
			io.WriteString(w, ": keepalive\n\n")
		case <-c.Request.Context().Done():
			return false
		}
		return true
	})
}

func writeEvent(w io.Writer, event, data string) {
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}
