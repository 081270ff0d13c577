package handler

import (
	"net/http"

	"github.com/hrdesk/hr-assistant/internal/service"
	"github.com/hrdesk/hr-assistant/pkg/logger"
)

// MessageHandler handles message endpoints.
type MessageHandler struct {
	conversationService *service.ConversationService
	logger              *logger.Logger
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(convSvc *service.ConversationService, log *logger.Logger) *MessageHandler {
	return &MessageHandler{
		conversationService: convSvc,
		logger:              log,
	}
}

// List handles GET /api/v1/conversations/:id/messages
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	limit, offset := paging(r, 50, 100)

	resp, err := h.conversationService.Messages(r.Context(), id, limit, offset)
	if err != nil {
		writeServiceError(w, h.logger, err, "get messages")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
