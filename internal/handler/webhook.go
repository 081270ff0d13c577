package handler

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/hrdesk/hr-assistant/internal/bitrix"
	"github.com/hrdesk/hr-assistant/internal/middleware"
	"github.com/hrdesk/hr-assistant/internal/model"
	"github.com/hrdesk/hr-assistant/internal/service"
	"github.com/hrdesk/hr-assistant/pkg/logger"
)

// EventBotMessage is the Bitrix24 event sent when a user writes to the bot.
const EventBotMessage = "ONIMBOTMESSAGEADD"

// InboundProcessor runs the message pipeline.
type InboundProcessor interface {
	HandleInbound(ctx context.Context, in *model.InboundMessage) (*service.InboundResult, error)
}

// Deduper reports whether a delivery id is seen for the first time. Forget
// releases an id whose processing failed so the platform retry goes through.
type Deduper interface {
	FirstSeen(ctx context.Context, id string) (bool, error)
	Forget(ctx context.Context, id string) error
}

// UserDirectory looks up employee profiles on the chat platform.
type UserDirectory interface {
	GetUser(ctx context.Context, userID string) (*bitrix.User, error)
	GetDepartment(ctx context.Context, id string) (*bitrix.Department, error)
}

// WebhookHandler receives chat messages from Bitrix24.
type WebhookHandler struct {
	processor InboundProcessor
	deduper   Deduper
	directory UserDirectory
	token     string
	logger    *logger.Logger
}

// NewWebhookHandler creates a webhook handler. deduper and directory may be
// nil. An empty token disables the shared token check.
func NewWebhookHandler(processor InboundProcessor, deduper Deduper, directory UserDirectory, token string, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		processor: processor,
		deduper:   deduper,
		directory: directory,
		token:     token,
		logger:    log.Named("webhook"),
	}
}

// flexString accepts both JSON strings and numbers.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

type webhookPayload struct {
	Event   string `json:"event"`
	Message struct {
		ID   flexString `json:"id"`
		Text string     `json:"text"`
	} `json:"message"`
	User struct {
		ID         flexString `json:"id"`
		Name       string     `json:"name"`
		Email      string     `json:"email"`
		Department string     `json:"department"`
		Position   string     `json:"position"`
	} `json:"user"`
	Chat struct {
		ID flexString `json:"id"`
	} `json:"chat"`
	Data struct {
		Params struct {
			Message    string     `json:"MESSAGE"`
			DialogID   flexString `json:"DIALOG_ID"`
			FromUserID flexString `json:"FROM_USER_ID"`
			MessageID  flexString `json:"MESSAGE_ID"`
		} `json:"PARAMS"`
		User struct {
			ID           flexString `json:"ID"`
			Name         string     `json:"NAME"`
			FirstName    string     `json:"FIRST_NAME"`
			LastName     string     `json:"LAST_NAME"`
			WorkPosition string     `json:"WORK_POSITION"`
		} `json:"USER"`
	} `json:"data"`
	Auth struct {
		ApplicationToken string `json:"application_token"`
	} `json:"auth"`
}

// inbound normalizes either payload shape.
func (p *webhookPayload) inbound() *model.InboundMessage {
	if p.Event == EventBotMessage {
		params := p.Data.Params
		name := strings.TrimSpace(p.Data.User.Name)
		if name == "" {
			name = strings.TrimSpace(p.Data.User.FirstName + " " + p.Data.User.LastName)
		}
		userID := string(params.FromUserID)
		if userID == "" {
			userID = string(p.Data.User.ID)
		}
		return &model.InboundMessage{
			MessageID: string(params.MessageID),
			Text:      strings.TrimSpace(params.Message),
			ChatID:    string(params.DialogID),
			UserID:    userID,
			UserName:  name,
			Position:  p.Data.User.WorkPosition,
		}
	}
	return &model.InboundMessage{
		MessageID:  string(p.Message.ID),
		Text:       strings.TrimSpace(p.Message.Text),
		ChatID:     string(p.Chat.ID),
		UserID:     string(p.User.ID),
		UserName:   strings.TrimSpace(p.User.Name),
		Email:      p.User.Email,
		Department: p.User.Department,
		Position:   p.User.Position,
	}
}

// formPayload reads the form-encoded variant Bitrix24 uses for bot events.
func formPayload(form url.Values) *webhookPayload {
	p := &webhookPayload{Event: form.Get("event")}
	p.Data.Params.Message = form.Get("data[PARAMS][MESSAGE]")
	p.Data.Params.DialogID = flexString(form.Get("data[PARAMS][DIALOG_ID]"))
	p.Data.Params.FromUserID = flexString(form.Get("data[PARAMS][FROM_USER_ID]"))
	p.Data.Params.MessageID = flexString(form.Get("data[PARAMS][MESSAGE_ID]"))
	p.Data.User.ID = flexString(form.Get("data[USER][ID]"))
	p.Data.User.Name = form.Get("data[USER][NAME]")
	p.Data.User.FirstName = form.Get("data[USER][FIRST_NAME]")
	p.Data.User.LastName = form.Get("data[USER][LAST_NAME]")
	p.Data.User.WorkPosition = form.Get("data[USER][WORK_POSITION]")
	p.Auth.ApplicationToken = form.Get("auth[application_token]")
	return p
}

// Handle handles POST /webhook/bitrix
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	payload, err := h.decode(w, r)
	if err != nil {
		h.logger.Warn("malformed webhook payload", zap.Error(err))
		writeError(w, http.StatusBadRequest, "No data received")
		return
	}

	if !h.authorized(r, payload) {
		writeError(w, http.StatusUnauthorized, "invalid webhook token")
		return
	}

	in := payload.inbound()
	if in.Text == "" || in.UserID == "" || in.ChatID == "" {
		h.logger.Warn("webhook missing required fields",
			zap.String("event", payload.Event),
			zap.String("chat_id", in.ChatID),
			zap.String("bitrix_user_id", in.UserID),
		)
		writeError(w, http.StatusBadRequest, "Missing required fields")
		return
	}
	if err := middleware.ValidateMessageContent(in.Text); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	deliveryKey, first := h.firstDelivery(ctx, in)
	if !first {
		writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
		return
	}
	if in.MessageID == "" {
		in.MessageID = middleware.GetCorrelationID(ctx)
	}

	h.enrich(ctx, in)

	if _, err := h.processor.HandleInbound(ctx, in); err != nil {
		h.forget(ctx, in, deliveryKey)
		if errors.Is(err, service.ErrInvalidMessage) {
			writeError(w, http.StatusBadRequest, "Missing required fields")
			return
		}
		h.logger.Error("failed to process webhook",
			zap.String("correlation_id", in.MessageID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (h *WebhookHandler) decode(w http.ResponseWriter, r *http.Request) (*webhookPayload, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/x-www-form-urlencoded" {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := r.ParseForm(); err != nil {
			return nil, err
		}
		if len(r.PostForm) == 0 {
			return nil, errors.New("empty form")
		}
		return formPayload(r.PostForm), nil
	}

	var p webhookPayload
	if err := decodeJSON(w, r, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (h *WebhookHandler) authorized(r *http.Request, p *webhookPayload) bool {
	if h.token == "" {
		return true
	}
	for _, candidate := range []string{
		r.Header.Get("X-Webhook-Token"),
		r.URL.Query().Get("token"),
		p.Auth.ApplicationToken,
	} {
		if candidate != "" && subtle.ConstantTimeCompare([]byte(candidate), []byte(h.token)) == 1 {
			return true
		}
	}
	return false
}

// firstDelivery reports false for redelivered messages, and returns the key
// it recorded (empty when nothing was recorded). Deduper failures let the
// message through.
func (h *WebhookHandler) firstDelivery(ctx context.Context, in *model.InboundMessage) (string, bool) {
	if h.deduper == nil || in.MessageID == "" {
		return "", true
	}
	key := in.ChatID + ":" + in.MessageID
	first, err := h.deduper.FirstSeen(ctx, key)
	if err != nil {
		h.logger.Warn("deduplication unavailable", zap.Error(err))
		return "", true
	}
	if !first {
		h.logger.Info("duplicate delivery ignored",
			zap.String("message_id", in.MessageID),
			zap.String("chat_id", in.ChatID),
		)
	}
	return key, first
}

// forget releases a recorded delivery after failed processing.
func (h *WebhookHandler) forget(ctx context.Context, in *model.InboundMessage, key string) {
	if key == "" {
		return
	}
	if err := h.deduper.Forget(ctx, key); err != nil {
		h.logger.Warn("failed to release delivery id",
			zap.String("message_id", in.MessageID),
			zap.Error(err),
		)
	}
}

// enrich fills a missing sender profile from the platform directory.
func (h *WebhookHandler) enrich(ctx context.Context, in *model.InboundMessage) {
	if h.directory == nil || in.UserName != "" {
		return
	}
	u, err := h.directory.GetUser(ctx, in.UserID)
	if err != nil || u == nil {
		if err != nil {
			h.logger.Debug("failed to look up user profile", zap.String("bitrix_user_id", in.UserID), zap.Error(err))
		}
		return
	}
	in.UserName = u.FullName()
	if in.Email == "" {
		in.Email = u.Email
	}
	if in.Position == "" {
		in.Position = u.WorkPosition
	}
	if in.Department == "" && len(u.Department) > 0 {
		dep, err := h.directory.GetDepartment(ctx, strconv.Itoa(u.Department[0]))
		if err == nil && dep != nil {
			in.Department = dep.Name
		}
	}
}
