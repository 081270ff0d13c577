package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hrdesk/hr-assistant/internal/bitrix"
	"github.com/hrdesk/hr-assistant/internal/cache"
	"github.com/hrdesk/hr-assistant/internal/knowledge"
	"github.com/hrdesk/hr-assistant/internal/model"
	"github.com/hrdesk/hr-assistant/internal/service"
	"github.com/hrdesk/hr-assistant/internal/store"
	"github.com/hrdesk/hr-assistant/pkg/logger"
)

type fakeProcessor struct {
	calls []*model.InboundMessage
	err   error
}

func (f *fakeProcessor) HandleInbound(_ context.Context, in *model.InboundMessage) (*service.InboundResult, error) {
	f.calls = append(f.calls, in)
	if f.err != nil {
		return nil, f.err
	}
	return &service.InboundResult{ConversationID: 1, Answer: "ok", Source: service.SourceGenerative}, nil
}

type fakeDirectory struct{}

func (fakeDirectory) GetUser(_ context.Context, id string) (*bitrix.User, error) {
	return &bitrix.User{ID: id, Name: "Иван", LastName: "Сидоров", Email: "ivan@example.com", Department: []int{5}}, nil
}

func (fakeDirectory) GetDepartment(_ context.Context, id string) (*bitrix.Department, error) {
	return &bitrix.Department{ID: id, Name: "Бухгалтерия"}, nil
}

func postJSON(h http.HandlerFunc, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestWebhookGenericPayload(t *testing.T) {
	proc := &fakeProcessor{}
	h := NewWebhookHandler(proc, nil, nil, "", logger.NewNop())

	rec := postJSON(h.Handle, "/webhook/bitrix", `{
		"message": {"text": " Как оформить отпуск? "},
		"user": {"id": 101, "name": "Анна", "department": "Продажи"},
		"chat": {"id": "chat42"}
	}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"status":"success"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
	if len(proc.calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(proc.calls))
	}
	in := proc.calls[0]
	if in.Text != "Как оформить отпуск?" || in.UserID != "101" || in.ChatID != "chat42" || in.Department != "Продажи" {
		t.Errorf("inbound = %+v", in)
	}
}

func TestWebhookBotEvent(t *testing.T) {
	proc := &fakeProcessor{}
	h := NewWebhookHandler(proc, nil, nil, "", logger.NewNop())

	rec := postJSON(h.Handle, "/webhook/bitrix", `{
		"event": "ONIMBOTMESSAGEADD",
		"data": {
			"PARAMS": {"MESSAGE": "Привет", "DIALOG_ID": "chat7", "FROM_USER_ID": "12", "MESSAGE_ID": 555},
			"USER": {"NAME": "Пётр Иванов"}
		}
	}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	in := proc.calls[0]
	if in.ChatID != "chat7" || in.UserID != "12" || in.MessageID != "555" || in.UserName != "Пётр Иванов" {
		t.Errorf("inbound = %+v", in)
	}
}

func TestWebhookFormEncodedBotEvent(t *testing.T) {
	proc := &fakeProcessor{}
	h := NewWebhookHandler(proc, nil, nil, "secret", logger.NewNop())

	form := url.Values{}
	form.Set("event", EventBotMessage)
	form.Set("data[PARAMS][MESSAGE]", "Сколько дней отпуска?")
	form.Set("data[PARAMS][DIALOG_ID]", "chat9")
	form.Set("data[PARAMS][FROM_USER_ID]", "33")
	form.Set("data[USER][FIRST_NAME]", "Ольга")
	form.Set("auth[application_token]", "secret")

	req := httptest.NewRequest(http.MethodPost, "/webhook/bitrix", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.Handle(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if in := proc.calls[0]; in.UserName != "Ольга" || in.ChatID != "chat9" {
		t.Errorf("inbound = %+v", in)
	}
}

func TestWebhookRejectsIncompletePayloads(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty body", ``},
		{"not json", `message=hi`},
		{"no text", `{"user": {"id": 1}, "chat": {"id": 2}}`},
		{"no user", `{"message": {"text": "hi"}, "chat": {"id": 2}}`},
		{"no chat", `{"message": {"text": "hi"}, "user": {"id": 1}}`},
		{"blank text", `{"message": {"text": "   "}, "user": {"id": 1}, "chat": {"id": 2}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proc := &fakeProcessor{}
			h := NewWebhookHandler(proc, nil, nil, "", logger.NewNop())
			rec := postJSON(h.Handle, "/webhook/bitrix", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if len(proc.calls) != 0 {
				t.Error("pipeline ran for an invalid payload")
			}
		})
	}
}

func TestWebhookToken(t *testing.T) {
	proc := &fakeProcessor{}
	h := NewWebhookHandler(proc, nil, nil, "secret", logger.NewNop())
	body := `{"message": {"text": "hi"}, "user": {"id": 1}, "chat": {"id": 2}}`

	if rec := postJSON(h.Handle, "/webhook/bitrix", body); rec.Code != http.StatusUnauthorized {
		t.Errorf("no token status = %d, want 401", rec.Code)
	}
	if rec := postJSON(h.Handle, "/webhook/bitrix?token=wrong", body); rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong token status = %d, want 401", rec.Code)
	}
	if rec := postJSON(h.Handle, "/webhook/bitrix?token=secret", body); rec.Code != http.StatusOK {
		t.Errorf("valid token status = %d, want 200", rec.Code)
	}
}

func TestWebhookDeduplicatesDeliveries(t *testing.T) {
	proc := &fakeProcessor{}
	h := NewWebhookHandler(proc, cache.NewMemoryDeduper(time.Minute), nil, "", logger.NewNop())
	body := `{"message": {"id": 77, "text": "hi"}, "user": {"id": 1}, "chat": {"id": 2}}`

	for i := 0; i < 2; i++ {
		if rec := postJSON(h.Handle, "/webhook/bitrix", body); rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
	}
	if len(proc.calls) != 1 {
		t.Errorf("calls = %d, want 1", len(proc.calls))
	}
}

func TestWebhookRetryAfterFailureIsProcessed(t *testing.T) {
	proc := &fakeProcessor{err: errors.New("database is down")}
	h := NewWebhookHandler(proc, cache.NewMemoryDeduper(time.Minute), nil, "", logger.NewNop())
	body := `{"message": {"id": 78, "text": "hi"}, "user": {"id": 1}, "chat": {"id": 2}}`

	if rec := postJSON(h.Handle, "/webhook/bitrix", body); rec.Code != http.StatusInternalServerError {
		t.Fatalf("first delivery status = %d, want 500", rec.Code)
	}

	proc.err = nil
	if rec := postJSON(h.Handle, "/webhook/bitrix", body); rec.Code != http.StatusOK {
		t.Fatalf("retry status = %d, want 200", rec.Code)
	}
	if len(proc.calls) != 2 {
		t.Fatalf("calls = %d, want 2 (retry must be processed)", len(proc.calls))
	}

	// Once processed, further redeliveries are duplicates again.
	postJSON(h.Handle, "/webhook/bitrix", body)
	if len(proc.calls) != 2 {
		t.Errorf("calls = %d after duplicate, want 2", len(proc.calls))
	}
}

func TestWebhookEnrichesProfileAndReportsFailures(t *testing.T) {
	proc := &fakeProcessor{}
	h := NewWebhookHandler(proc, nil, fakeDirectory{}, "", logger.NewNop())
	body := `{"message": {"text": "hi"}, "user": {"id": 8}, "chat": {"id": 2}}`

	if rec := postJSON(h.Handle, "/webhook/bitrix", body); rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	in := proc.calls[0]
	if in.UserName != "Иван Сидоров" || in.Department != "Бухгалтерия" || in.Email != "ivan@example.com" {
		t.Errorf("inbound = %+v", in)
	}

	proc.err = errors.New("database is down")
	if rec := postJSON(h.Handle, "/webhook/bitrix", body); rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

type apiEnv struct {
	router   chi.Router
	articles *store.ArticleStore
	watcher  *fakeWatcher
}

type fakeWatcher struct {
	events chan model.ConversationEvent
}

func (f *fakeWatcher) Watch(context.Context, uint) (<-chan model.ConversationEvent, error) {
	return f.events, nil
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	db, err := store.Open(store.Options{Driver: "sqlite", DSN: ":memory:"})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := store.AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close(db) })

	log := logger.NewNop()
	articles := store.NewArticleStore(db)
	responses := store.NewResponseStore(db)
	convs := store.NewConversationStore(db)
	messages := store.NewMessageStore(db)
	matcher := knowledge.NewMatcher(articles, knowledge.DefaultTable(), log)

	knowledgeSvc := service.NewKnowledgeService(articles, responses, matcher, log)
	convSvc := service.NewConversationService(convs, messages, nil, nil, nil, "", log)

	kh := NewKnowledgeHandler(knowledgeSvc, log)
	ch := NewConversationHandler(convSvc, nil, log)
	mh := NewMessageHandler(convSvc, log)
	ah := NewAnalyticsHandler(store.NewAnalyticsStore(db), log)
	watcher := &fakeWatcher{events: make(chan model.ConversationEvent, 4)}
	sh := NewStreamHandler(convSvc, watcher, log)

	r := chi.NewRouter()
	r.Get("/articles", kh.ListArticles)
	r.Post("/articles", kh.CreateArticle)
	r.Get("/articles/{id}", kh.GetArticle)
	r.Put("/articles/{id}", kh.UpdateArticle)
	r.Delete("/articles/{id}", kh.DeleteArticle)
	r.Get("/search", kh.Search)
	r.Post("/responses", kh.CreateResponse)
	r.Get("/responses", kh.ListResponses)
	r.Get("/conversations", ch.List)
	r.Post("/conversations/{id}/close", ch.Close)
	r.Get("/conversations/{id}/events", ch.Events)
	r.Get("/conversations/{id}/messages", mh.List)
	r.Get("/conversations/{id}/stream", sh.Stream)
	r.Get("/analytics/overview", ah.Overview)
	r.Get("/analytics/daily", ah.Daily)
	r.Post("/analytics/rollup", ah.Rollup)

	user, _ := store.NewUserStore(db).FindOrCreate(context.Background(), &model.User{BitrixUserID: "1", Name: "A"})
	if _, _, err := convs.FindOrCreateActive(context.Background(), user.ID, "chat"); err != nil {
		t.Fatalf("FindOrCreateActive() error = %v", err)
	}
	return &apiEnv{router: r, articles: articles, watcher: watcher}
}

func (e *apiEnv) do(method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestArticleCRUD(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.do(http.MethodPost, "/articles", `{"title":"Как получить справку 2-НДФЛ?","content":"Закажите в HR-портале.","category":"документы","tags":["справка","ндфл"]}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	var created model.ArticleView
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ID == 0 || len(created.Tags) != 2 {
		t.Errorf("created = %+v", created)
	}

	if rec := env.do(http.MethodPost, "/articles", `{"title":"x","content":"y","category":"неизвестная"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown category status = %d, want 400", rec.Code)
	}
	if rec := env.do(http.MethodPost, "/articles", `{`); rec.Code != http.StatusBadRequest {
		t.Errorf("bad json status = %d, want 400", rec.Code)
	}

	rec = env.do(http.MethodGet, "/search?q=справка", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"found":true`) {
		t.Errorf("search = %d %s", rec.Code, rec.Body.String())
	}

	rec = env.do(http.MethodPut, "/articles/1", `{"title":"Справка 2-НДФЛ","content":"Новый текст","category":"документы"}`)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Новый текст") {
		t.Errorf("update = %d %s", rec.Code, rec.Body.String())
	}
	if rec := env.do(http.MethodPut, "/articles/99", `{"title":"a","content":"b","category":"документы"}`); rec.Code != http.StatusNotFound {
		t.Errorf("update missing status = %d, want 404", rec.Code)
	}

	if rec := env.do(http.MethodDelete, "/articles/1", ""); rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", rec.Code)
	}
	rec = env.do(http.MethodGet, "/articles", "")
	if !strings.Contains(rec.Body.String(), `"articles":[]`) {
		t.Errorf("list after delete = %s", rec.Body.String())
	}
	rec = env.do(http.MethodGet, "/articles?include_inactive=true", "")
	if !strings.Contains(rec.Body.String(), `"is_active":false`) {
		t.Errorf("list inactive = %s", rec.Body.String())
	}
	if rec := env.do(http.MethodGet, "/articles/abc", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", rec.Code)
	}
}

func TestCannedResponseEndpoints(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.do(http.MethodPost, "/responses", `{"keywords":"привет, здравствуйте","response":"Здравствуйте! Чем помочь?","category":"общее","priority":2}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	if rec := env.do(http.MethodPost, "/responses", `{"keywords":"","response":"x","category":"y"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("empty keywords status = %d, want 400", rec.Code)
	}
	rec = env.do(http.MethodGet, "/responses", "")
	if !strings.Contains(rec.Body.String(), "Чем помочь") {
		t.Errorf("list = %s", rec.Body.String())
	}
}

func TestConversationEndpoints(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.do(http.MethodGet, "/conversations?status=active", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"total":1`) {
		t.Errorf("list = %d %s", rec.Code, rec.Body.String())
	}
	if rec := env.do(http.MethodGet, "/conversations?status=bogus", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad status filter = %d, want 400", rec.Code)
	}

	if rec := env.do(http.MethodPost, "/conversations/1/close", ""); rec.Code != http.StatusOK {
		t.Errorf("close status = %d, body %s", rec.Code, rec.Body.String())
	}
	if rec := env.do(http.MethodPost, "/conversations/1/close", ""); rec.Code != http.StatusConflict {
		t.Errorf("second close status = %d, want 409", rec.Code)
	}
	if rec := env.do(http.MethodPost, "/conversations/5/close", ""); rec.Code != http.StatusNotFound {
		t.Errorf("missing close status = %d, want 404", rec.Code)
	}

	rec = env.do(http.MethodGet, "/conversations/1/messages", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"messages":[]`) {
		t.Errorf("messages = %d %s", rec.Code, rec.Body.String())
	}
	if rec := env.do(http.MethodGet, "/conversations/1/events", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("events without log status = %d, want 503", rec.Code)
	}
}

func TestAnalyticsEndpoints(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.do(http.MethodGet, "/analytics/overview", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"total_conversations":1`) {
		t.Errorf("overview = %d %s", rec.Code, rec.Body.String())
	}
	if rec := env.do(http.MethodGet, "/analytics/daily?days=0", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("days=0 status = %d, want 400", rec.Code)
	}
	if rec := env.do(http.MethodGet, "/analytics/daily?days=7", ""); rec.Code != http.StatusOK {
		t.Errorf("daily status = %d", rec.Code)
	}
	if rec := env.do(http.MethodPost, "/analytics/rollup?date=2026-13-01", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad date status = %d, want 400", rec.Code)
	}
	rec = env.do(http.MethodPost, "/analytics/rollup?date=2026-03-01", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"total_messages":0`) {
		t.Errorf("rollup = %d %s", rec.Code, rec.Body.String())
	}
}

func TestReady(t *testing.T) {
	ok := PingFunc(func(context.Context) error { return nil })
	down := PingFunc(func(context.Context) error { return errors.New("connection refused") })

	h := NewHealthHandler(map[string]Pinger{"database": ok, "redis": nil})
	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("ready status = %d", rec.Code)
	}

	h = NewHealthHandler(map[string]Pinger{"database": ok, "nats": down})
	rec = httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusServiceUnavailable || !strings.Contains(rec.Body.String(), "nats") {
		t.Errorf("not ready = %d %s", rec.Code, rec.Body.String())
	}
}

func TestStreamForwardsEvents(t *testing.T) {
	env := newAPIEnv(t)
	env.watcher.events <- model.ConversationEvent{ID: "evt-1", ConversationID: 1, Type: model.EventTypeClosed}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/conversations/1/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	body := rec.Body.String()
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}
	for _, want := range []string{"event: connected\n", "id: evt-1\nevent: closed\n", `"conversation_id":1`} {
		if !strings.Contains(body, want) {
			t.Errorf("stream body missing %q:\n%s", want, body)
		}
	}

	if rec := env.do(http.MethodGet, "/conversations/99/stream", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown conversation status = %d, want 404", rec.Code)
	}
}
