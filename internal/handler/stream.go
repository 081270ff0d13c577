package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/hrdesk/hr-assistant/internal/model"
	"github.com/hrdesk/hr-assistant/internal/service"
	"github.com/hrdesk/hr-assistant/pkg/logger"
	"github.com/hrdesk/hr-assistant/pkg/metrics"
)

const heartbeatInterval = 30 * time.Second

// EventWatcher follows the event log of a conversation.
type EventWatcher interface {
	Watch(ctx context.Context, conversationID uint) (<-chan model.ConversationEvent, error)
}

// StreamHandler streams conversation events to the admin dashboard over SSE.
type StreamHandler struct {
	conversationService *service.ConversationService
	watcher             EventWatcher
	logger              *logger.Logger
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(convSvc *service.ConversationService, watcher EventWatcher, log *logger.Logger) *StreamHandler {
	return &StreamHandler{
		conversationService: convSvc,
		watcher:             watcher,
		logger:              log,
	}
}

// Stream handles GET /api/v1/conversations/:id/stream
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if h.watcher == nil {
		writeError(w, http.StatusServiceUnavailable, "event log not configured")
		return
	}
	if _, err := h.conversationService.Get(ctx, id); err != nil {
		writeServiceError(w, h.logger, err, "get conversation")
		return
	}

	events, err := h.watcher.Watch(ctx, id)
	if err != nil {
		writeServiceError(w, h.logger, err, "watch events")
		return
	}

	// The server write timeout would otherwise end the stream.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("write deadline not adjustable", zap.Error(err))
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	if err := sendSSEEvent(w, rc, "", "connected", map[string]uint{"conversation_id": id}); err != nil {
		h.logger.Warn("streaming not supported", zap.Error(err))
		return
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("event stream closed", zap.Uint("conversation_id", id))
			return
		case event := <-events:
			if err := sendSSEEvent(w, rc, event.ID, string(event.Type), event); err != nil {
				h.logger.Warn("failed to write event", zap.Uint("conversation_id", id), zap.Error(err))
				return
			}
		case now := <-heartbeat.C:
			if err := sendSSEEvent(w, rc, "", "heartbeat", map[string]time.Time{"timestamp": now.UTC()}); err != nil {
				return
			}
		}
	}
}

// sendSSEEvent writes one event frame. An empty id omits the id field.
func sendSSEEvent(w http.ResponseWriter, rc *http.ResponseController, id, event string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if id != "" {
		if _, err := fmt.Fprintf(w, "id: %s\n", id); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return err
	}
	return rc.Flush()
}
