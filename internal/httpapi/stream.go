package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/chessfen/internal/service/analysis"
	"github.com/park285/chessfen/pkg/fendto"
)

// streamHints is sent as a text frame and applies to every following image.
type streamHints struct {
	Corners     string `json:"corners"`
	Orientation string `json:"orientation"`
}

// Stream upgrades to a WebSocket. Each binary frame is one image and gets one
// StreamFrame reply, in order.
func (h *Handler) Stream(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		h.logger.Warn("stream_accept_failed", zap.Error(err))
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()
	conn.SetReadLimit(h.svc.MaxUploadBytes() + 1)

	ctx := c.Request.Context()
	connID := c.GetString(requestIDKey)
	var hints streamHints
	seq := 0
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				h.logger.Debug("stream_read_failed", zap.Error(err))
			}
			return
		}

		if typ == websocket.MessageText {
			var next streamHints
			if err := json.Unmarshal(data, &next); err == nil {
				hints = next
				continue
			}
		}

		seq++
		frame := fendto.StreamFrame{Seq: seq}
		if typ == websocket.MessageText {
			de := h.svc.DomainError(fendto.DomainError{Code: analysis.CodeBadRequest, Message: "invalid hints JSON"})
			frame.Error = &de
		} else if resp, err := h.svc.Analyze(ctx, analysis.Upload{
			Data:        data,
			Corners:     hints.Corners,
			Orientation: hints.Orientation,
			RequestID:   fmt.Sprintf("%s-%d", connID, seq),
		}); err != nil {
			de := h.svc.DomainError(err)
			frame.Error = &de
		} else {
			frame.Result = resp
		}
		if err := wsjson.Write(ctx, conn, frame); err != nil {
			h.logger.Debug("stream_write_failed", zap.Error(err))
			return
		}
	}
}
