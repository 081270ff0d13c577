package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/hrdesk/hr-assistant/internal/knowledge"
	"github.com/hrdesk/hr-assistant/internal/llm"
	"github.com/hrdesk/hr-assistant/internal/model"
	"github.com/hrdesk/hr-assistant/internal/store"
	"github.com/hrdesk/hr-assistant/pkg/logger"
)

type fakeGenerator struct {
	mu      sync.Mutex
	answer  string
	err     error
	panics  bool
	calls   int
	history [][]llm.ChatMessage
}

func (f *fakeGenerator) Generate(_ context.Context, _ string, history []llm.ChatMessage) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.history = append(f.history, history)
	if f.panics {
		panic("backend exploded")
	}
	return f.answer, f.err
}

type blockingClient struct{}

func (blockingClient) Name() string { return "blocking" }

func (blockingClient) Complete(ctx context.Context, _ *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type fakePlatform struct {
	mu      sync.Mutex
	sendErr error
	sent    []string
	tasks   []string
}

func (p *fakePlatform) SendMessage(_ context.Context, _ string, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sendErr != nil {
		return p.sendErr
	}
	p.sent = append(p.sent, text)
	return nil
}

func (p *fakePlatform) SetTyping(context.Context, string) error { return nil }

func (p *fakePlatform) CreateTask(_ context.Context, title, _, _ string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tasks = append(p.tasks, title)
	return "42", nil
}

type recordingEvents struct {
	mu     sync.Mutex
	events []*model.ConversationEvent
}

func (r *recordingEvents) Publish(_ context.Context, e *model.ConversationEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingEvents) types() []model.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

type fakeSummarizer struct{ lines []string }

func (f *fakeSummarizer) Summarize(_ context.Context, lines []string) (string, error) {
	f.lines = lines
	return "Сотрудник спрашивал про отпуск.", nil
}

type testEnv struct {
	db        *gorm.DB
	users     *store.UserStore
	convs     *store.ConversationStore
	messages  *store.MessageStore
	articles  *store.ArticleStore
	responses *store.ResponseStore
	matcher   *knowledge.Matcher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := store.Open(store.Options{Driver: "sqlite", DSN: ":memory:"})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := store.AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close(db) })

	env := &testEnv{
		db:        db,
		users:     store.NewUserStore(db),
		convs:     store.NewConversationStore(db),
		messages:  store.NewMessageStore(db),
		articles:  store.NewArticleStore(db),
		responses: store.NewResponseStore(db),
	}
	env.matcher = knowledge.NewMatcher(env.articles, knowledge.DefaultTable(), logger.NewNop())
	return env
}

func (e *testEnv) resolver(gen AnswerGenerator) *Resolver {
	log := logger.NewNop()
	return NewResolver(e.matcher, NewCannedMatcher(e.responses, log), NewContextBuilder(e.messages), gen, log)
}

func (e *testEnv) messageService(gen AnswerGenerator, platform ChatPlatform, events EventPublisher) *MessageService {
	return NewMessageService(e.users, e.convs, e.messages, e.resolver(gen), platform, events, logger.NewNop())
}

func inbound(text string) *model.InboundMessage {
	return &model.InboundMessage{Text: text, ChatID: "chat1", UserID: "101", UserName: "Анна Петрова"}
}

func TestCannedMatcherHighestPriorityWins(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	low := &model.CannedResponse{TriggerKeywords: "пропуск", ResponseText: "low", Category: "общее", Priority: 1}
	high := &model.CannedResponse{TriggerKeywords: "офис, Пропуск", ResponseText: "high", Category: "общее", Priority: 5}
	for _, r := range []*model.CannedResponse{low, high} {
		if err := env.responses.Create(ctx, r); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	m := NewCannedMatcher(env.responses, logger.NewNop())
	got, ok, err := m.Match(ctx, "Где получить ПРОПУСК?")
	if err != nil || !ok || got != "high" {
		t.Fatalf("Match() = %q, %v, %v; want high", got, ok, err)
	}
	r, _ := env.responses.Get(ctx, high.ID)
	if r.UsageCount != 1 {
		t.Errorf("usage = %d, want 1", r.UsageCount)
	}

	if _, ok, _ := m.Match(ctx, "парковка"); ok {
		t.Error("Match() found a response for an unrelated query")
	}
}

func TestContextBuilderOrderAndLimit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user, _ := env.users.FindOrCreate(ctx, &model.User{BitrixUserID: "1", Name: "A"})
	conv, _, _ := env.convs.FindOrCreateActive(ctx, user.ID, "c")

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 12; i++ {
		typ := model.MessageTypeUser
		if i%2 == 1 {
			typ = model.MessageTypeBot
		}
		if i == 11 {
			typ = model.MessageTypeSystem
		}
		msg := &model.Message{
			ConversationID: conv.ID,
			MessageType:    typ,
			Content:        string(rune('a' + i)),
			Timestamp:      base.Add(time.Duration(i) * time.Second),
		}
		if err := env.messages.Append(ctx, msg); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	history, err := NewContextBuilder(env.messages).Build(ctx, conv.ID)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(history) != ContextSize {
		t.Fatalf("len = %d, want %d", len(history), ContextSize)
	}
	var got strings.Builder
	for _, m := range history {
		got.WriteString(m.Content)
	}
	if got.String() != "cdefghijkl" {
		t.Errorf("history order = %q, want cdefghijkl", got.String())
	}
	if history[0].Role != llm.RoleUser || history[1].Role != llm.RoleAssistant || history[9].Role != llm.RoleAssistant {
		t.Errorf("roles = %v %v %v", history[0].Role, history[1].Role, history[9].Role)
	}
}

func TestResolverStageOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if _, err := env.articles.EnsureByTitle(ctx, knowledge.DefaultArticles()); err != nil {
		t.Fatalf("EnsureByTitle() error = %v", err)
	}
	if err := env.responses.Create(ctx, &model.CannedResponse{
		TriggerKeywords: "привет", ResponseText: "Здравствуйте!", Category: "общее",
	}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	gen := &fakeGenerator{answer: "Сгенерированный ответ"}
	r := env.resolver(gen)

	tests := []struct {
		text   string
		source Source
	}{
		{"Как оформить отпуск?", SourceKnowledgeBase},
		{"привет всем", SourceCanned},
		{"qwqwqw", SourceGenerative},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			res := r.Resolve(ctx, tt.text, 1)
			if res.Source != tt.source || res.Text == "" {
				t.Errorf("Resolve(%q) = %+v, want source %s", tt.text, res, tt.source)
			}
		})
	}
	if gen.calls != 1 {
		t.Errorf("generator calls = %d, want 1", gen.calls)
	}
}

func TestResolverFailuresBecomeApologies(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name string
		gen  *fakeGenerator
		want string
	}{
		{"timeout", &fakeGenerator{err: llm.ErrTimeout}, ApologyTimeout},
		{"deadline", &fakeGenerator{err: context.DeadlineExceeded}, ApologyTimeout},
		{"transport", &fakeGenerator{err: llm.ErrTransport}, ApologyTransport},
		{"malformed", &fakeGenerator{err: llm.ErrMalformedResponse}, ApologyMalformed},
		{"not configured", &fakeGenerator{err: llm.ErrNotConfigured}, ApologyTransport},
		{"panic", &fakeGenerator{panics: true}, ApologyTransport},
		{"blank answer", &fakeGenerator{answer: "   "}, ApologyTransport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := env.resolver(tt.gen).Resolve(ctx, "qwqwqw", 1)
			if res.Source != SourceFallback || res.Text != tt.want {
				t.Errorf("Resolve() = %+v, want fallback %q", res, tt.want)
			}
		})
	}
}

func TestResolverDoesNotCacheGenerativeAnswers(t *testing.T) {
	env := newTestEnv(t)
	gen := &fakeGenerator{answer: "ответ"}
	r := env.resolver(gen)

	for i := 0; i < 2; i++ {
		if res := r.Resolve(context.Background(), "qwqwqw", 1); res.Source != SourceGenerative {
			t.Fatalf("Resolve() source = %s", res.Source)
		}
	}
	if gen.calls != 2 {
		t.Errorf("generator calls = %d, want 2", gen.calls)
	}
}

func TestHandleInboundKnowledgeHit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if _, err := env.articles.EnsureByTitle(ctx, knowledge.DefaultArticles()); err != nil {
		t.Fatalf("EnsureByTitle() error = %v", err)
	}
	gen := &fakeGenerator{answer: "не должен вызываться"}
	platform := &fakePlatform{}
	events := &recordingEvents{}
	svc := env.messageService(gen, platform, events)

	res, err := svc.HandleInbound(ctx, inbound("Как оформить отпуск?"))
	if err != nil {
		t.Fatalf("HandleInbound() error = %v", err)
	}
	if res.Source != SourceKnowledgeBase || !res.Relayed {
		t.Errorf("result = %+v", res)
	}
	if !strings.HasPrefix(res.Answer, "📋 **Как оформить отпуск**\n\n") {
		t.Errorf("answer = %q", res.Answer)
	}
	if gen.calls != 0 {
		t.Errorf("generator calls = %d, want 0", gen.calls)
	}
	if len(platform.sent) != 1 || platform.sent[0] != res.Answer {
		t.Errorf("sent = %v", platform.sent)
	}

	articles, _ := env.articles.List(ctx, store.ArticleFilter{})
	var usage int
	for _, a := range articles {
		if a.Title == "Как оформить отпуск" {
			usage = a.UsageCount
		}
	}
	if usage != 1 {
		t.Errorf("usage = %d, want 1", usage)
	}

	msgs, _, _ := env.messages.List(ctx, res.ConversationID, 10, 0)
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(msgs))
	}
	if msgs[0].MessageType != model.MessageTypeUser || msgs[1].MessageType != model.MessageTypeBot {
		t.Errorf("types = %s, %s", msgs[0].MessageType, msgs[1].MessageType)
	}
	if !msgs[1].KnowledgeBaseUsed || msgs[1].ProcessedByLLM || msgs[1].ResponseTime == nil {
		t.Errorf("bot message = %+v", msgs[1])
	}
	if got := events.types(); len(got) != 2 {
		t.Errorf("events = %v, want two message events", got)
	}
}

func TestHandleInboundGeneratorTimeout(t *testing.T) {
	env := newTestEnv(t)
	gen := llm.NewGenerator(blockingClient{}, llm.GeneratorConfig{Timeout: 50 * time.Millisecond}, logger.NewNop())
	svc := env.messageService(gen, nil, nil)

	res, err := svc.HandleInbound(context.Background(), inbound("qwqwqw"))
	if err != nil {
		t.Fatalf("HandleInbound() error = %v", err)
	}
	if res.Answer != ApologyTimeout || res.Source != SourceFallback {
		t.Errorf("result = %+v, want timeout apology", res)
	}
	if res.Relayed {
		t.Error("Relayed = true without a platform")
	}
	msgs, _, _ := env.messages.List(context.Background(), res.ConversationID, 10, 0)
	if len(msgs) != 2 || msgs[1].Content != ApologyTimeout || msgs[1].ProcessedByLLM {
		t.Errorf("messages = %+v", msgs)
	}
}

func TestHandleInboundRelayFailureKeepsAnswer(t *testing.T) {
	env := newTestEnv(t)
	platform := &fakePlatform{sendErr: errors.New("bitrix down")}
	events := &recordingEvents{}
	svc := env.messageService(&fakeGenerator{answer: "ответ"}, platform, events)

	res, err := svc.HandleInbound(context.Background(), inbound("qwqwqw"))
	if err != nil {
		t.Fatalf("HandleInbound() error = %v", err)
	}
	if res.Relayed {
		t.Error("Relayed = true after send failure")
	}
	msgs, _, _ := env.messages.List(context.Background(), res.ConversationID, 10, 0)
	if len(msgs) != 2 || msgs[1].Content != "ответ" || !msgs[1].ProcessedByLLM {
		t.Errorf("messages = %+v", msgs)
	}
	got := events.types()
	if len(got) == 0 || got[len(got)-1] != model.EventTypeRelayFail {
		t.Errorf("events = %v, want trailing relay_failed", got)
	}
}

func TestHandleInboundReusesConversation(t *testing.T) {
	env := newTestEnv(t)
	gen := &fakeGenerator{answer: "ответ"}
	svc := env.messageService(gen, nil, nil)
	ctx := context.Background()

	first, err := svc.HandleInbound(ctx, inbound("qwqwqw"))
	if err != nil {
		t.Fatalf("HandleInbound() error = %v", err)
	}
	second, err := svc.HandleInbound(ctx, inbound("еще вопрос"))
	if err != nil {
		t.Fatalf("HandleInbound() error = %v", err)
	}
	if first.ConversationID != second.ConversationID {
		t.Errorf("conversation ids = %d, %d", first.ConversationID, second.ConversationID)
	}
	// the stored question is the last history entry
	last := gen.history[1]
	if len(last) != 3 || last[0].Content != "qwqwqw" || last[1].Content != "ответ" || last[2].Content != "еще вопрос" {
		t.Errorf("history = %+v", last)
	}
}

func TestHandleInboundValidation(t *testing.T) {
	env := newTestEnv(t)
	svc := env.messageService(&fakeGenerator{answer: "x"}, nil, nil)

	for _, in := range []*model.InboundMessage{
		{Text: "   ", ChatID: "c", UserID: "u"},
		{Text: "вопрос", UserID: "u"},
		{Text: "вопрос", ChatID: "c"},
	} {
		if _, err := svc.HandleInbound(context.Background(), in); !errors.Is(err, ErrInvalidMessage) {
			t.Errorf("HandleInbound(%+v) error = %v, want ErrInvalidMessage", in, err)
		}
	}

	res, err := svc.HandleInbound(context.Background(), &model.InboundMessage{Text: "вопрос", ChatID: "c", UserID: "u"})
	if err != nil {
		t.Fatalf("HandleInbound() error = %v", err)
	}
	conv, _ := env.convs.Get(context.Background(), res.ConversationID)
	if conv.User == nil || conv.User.Name != unknownUserName {
		t.Errorf("user = %+v", conv.User)
	}
}

func TestConversationCloseAndEscalate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	platform := &fakePlatform{}
	events := &recordingEvents{}
	summarizer := &fakeSummarizer{}
	msgSvc := env.messageService(&fakeGenerator{answer: "ответ"}, platform, events)
	convSvc := NewConversationService(env.convs, env.messages, summarizer, platform, events, "7", logger.NewNop())

	res, err := msgSvc.HandleInbound(ctx, inbound("qwqwqw"))
	if err != nil {
		t.Fatalf("HandleInbound() error = %v", err)
	}

	conv, err := convSvc.Close(ctx, res.ConversationID)
	if err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if conv.Status != model.ConversationClosed || conv.EndedAt == nil {
		t.Errorf("closed conversation = %+v", conv)
	}
	if len(summarizer.lines) != 2 || summarizer.lines[0] != "Сотрудник: qwqwqw" {
		t.Errorf("summary lines = %v", summarizer.lines)
	}
	page, _ := convSvc.Messages(ctx, res.ConversationID, 10, 0)
	last := page.Messages[len(page.Messages)-1]
	if last.MessageType != model.MessageTypeSystem || !strings.HasPrefix(last.Content, summaryPrefix) {
		t.Errorf("last message = %+v", last)
	}

	if _, err := convSvc.Close(ctx, res.ConversationID); !errors.Is(err, store.ErrNotActive) {
		t.Errorf("second Close() error = %v, want ErrNotActive", err)
	}

	// the next message opens a fresh conversation which is then escalated
	res2, err := msgSvc.HandleInbound(ctx, inbound("нужна помощь"))
	if err != nil {
		t.Fatalf("HandleInbound() error = %v", err)
	}
	if res2.ConversationID == res.ConversationID {
		t.Fatal("closed conversation was reused")
	}
	conv, taskID, err := convSvc.Escalate(ctx, res2.ConversationID, "сложный вопрос")
	if err != nil {
		t.Fatalf("Escalate() error = %v", err)
	}
	if conv.Status != model.ConversationEscalated || !conv.EscalatedToHuman || taskID != "42" {
		t.Errorf("escalated = %+v, task %q", conv, taskID)
	}
	if len(platform.tasks) != 1 || !strings.Contains(platform.tasks[0], "Анна Петрова") {
		t.Errorf("tasks = %v", platform.tasks)
	}
	if platform.sent[len(platform.sent)-1] != escalationNotice {
		t.Errorf("last sent = %q", platform.sent[len(platform.sent)-1])
	}

	list, err := convSvc.List(ctx, "", 10, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if list.Total != 2 || list.HasMore || list.Conversations[0].ID != res2.ConversationID {
		t.Errorf("List() = %+v", list)
	}
	if list.Conversations[1].MessageCount != 3 {
		t.Errorf("message count = %d, want 3", list.Conversations[1].MessageCount)
	}

	if _, err := convSvc.Messages(ctx, 999, 10, 0); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Messages() error = %v, want ErrNotFound", err)
	}
}

func TestKnowledgeServiceValidation(t *testing.T) {
	env := newTestEnv(t)
	svc := NewKnowledgeService(env.articles, env.responses, env.matcher, logger.NewNop())
	ctx := context.Background()

	_, err := svc.CreateArticle(ctx, &model.ArticleRequest{Title: "Т", Content: "С", Category: "космос"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("CreateArticle() error = %v, want ErrInvalidInput", err)
	}

	v, err := svc.CreateArticle(ctx, &model.ArticleRequest{
		Title: " Больничный ", Content: "Принесите лист нетрудоспособности.", Category: "больничный",
		Tags: []string{"больничный", " ", "лист"},
	})
	if err != nil {
		t.Fatalf("CreateArticle() error = %v", err)
	}
	if v.Title != "Больничный" || len(v.Tags) != 2 || !v.IsActive {
		t.Errorf("created = %+v", v)
	}

	preview, err := svc.Preview(ctx, "больничный")
	if err != nil || !preview.Found || preview.Article.ID != v.ID {
		t.Fatalf("Preview() = %+v, %v", preview, err)
	}
	got, _ := svc.GetArticle(ctx, v.ID)
	if got.UsageCount != 0 {
		t.Errorf("Preview counted usage: %d", got.UsageCount)
	}

	if err := svc.DeleteArticle(ctx, v.ID); err != nil {
		t.Fatalf("DeleteArticle() error = %v", err)
	}
	if preview, _ := svc.Preview(ctx, "больничный"); preview.Found {
		t.Error("Preview() found a deactivated article")
	}

	if _, err := svc.CreateResponse(ctx, &model.CannedResponseRequest{Keywords: " , ", Response: "x", Category: "y"}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("CreateResponse() error = %v, want ErrInvalidInput", err)
	}
	r, err := svc.CreateResponse(ctx, &model.CannedResponseRequest{Keywords: "офис,  адрес", Response: "Адрес офиса", Category: "общее", Priority: 3})
	if err != nil {
		t.Fatalf("CreateResponse() error = %v", err)
	}
	if r.TriggerKeywords != "офис, адрес" {
		t.Errorf("keywords = %q", r.TriggerKeywords)
	}
}
