package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hrdesk/hr-assistant/pkg/logger"
	"github.com/hrdesk/hr-assistant/pkg/metrics"
)

// SystemPrompt is the HR assistant persona sent with every generated answer.
const SystemPrompt = `Вы - корпоративный HR-помощник для сотрудников компании.

Ваша роль:
- Отвечайте на вопросы о HR-процедурах, отпусках, больничных, льготах
- Предоставляйте информацию о корпоративных политиках
- Помогайте с процедурными вопросами
- Говорите только на русском языке
- Будьте вежливы и профессиональны

Важные правила:
- Если вы не знаете точного ответа, честно скажите об этом
- При сложных вопросах рекомендуйте обратиться к HR-специалисту
- Не давайте правовых советов
- Не разглашайте конфиденциальную информацию о других сотрудниках
- Ответы должны быть краткими и по существу

Если спрашивают о чем-то, что не относится к HR или работе компании, вежливо перенаправьте разговор на рабочие темы.`

// RefusalMessage is returned instead of a generated answer for forbidden topics.
const RefusalMessage = "Извините, я не могу отвечать на вопросы о паролях, учетных данных и конфиденциальной информации других сотрудников. Обратитесь к HR-специалисту или в службу IT-поддержки."

// DefaultForbiddenWords lists topics the assistant never sends to the backend.
var DefaultForbiddenWords = []string{
	"пароль", "password", "логин", "login",
	"конфиденциально", "секретно", "зарплата других",
}

const (
	maxContextTurns  = 5
	summaryLines     = 10
	summaryTimeout   = 20 * time.Second
	summaryMaxTokens = 500
)

// GeneratorConfig tunes generation.
type GeneratorConfig struct {
	Model          string
	Temperature    float64
	MaxTokens      int
	Timeout        time.Duration
	ForbiddenWords []string
}

// Generator produces HR answers through a Client.
type Generator struct {
	client    Client
	cfg       GeneratorConfig
	forbidden []string
	log       *logger.Logger
}

// NewGenerator creates a generator. A nil client makes every call fail with
// ErrNotConfigured.
func NewGenerator(client Client, cfg GeneratorConfig, log *logger.Logger) *Generator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2000
	}
	words := cfg.ForbiddenWords
	if len(words) == 0 {
		words = DefaultForbiddenWords
	}
	forbidden := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			forbidden = append(forbidden, w)
		}
	}
	return &Generator{client: client, cfg: cfg, forbidden: forbidden, log: log.Named("llm")}
}

// Provider returns the backend name, or "none".
func (g *Generator) Provider() string {
	if g.client == nil {
		return "none"
	}
	return g.client.Name()
}

// IsSafe reports whether text avoids every forbidden topic.
func (g *Generator) IsSafe(text string) bool {
	lower := strings.ToLower(text)
	for _, w := range g.forbidden {
		if strings.Contains(lower, w) {
			return false
		}
	}
	return true
}

// Generate answers text given the preceding conversation. Errors are
// classified with Classify.
func (g *Generator) Generate(ctx context.Context, text string, history []ChatMessage) (string, error) {
	if !g.IsSafe(text) {
		g.log.Info("refused forbidden topic")
		return RefusalMessage, nil
	}

	// The current message is usually already the last stored turn.
	if n := len(history); n > 0 && history[n-1].Role == RoleUser && history[n-1].Content == text {
		history = history[:n-1]
	}
	if len(history) > maxContextTurns {
		history = history[len(history)-maxContextTurns:]
	}

	messages := make([]ChatMessage, 0, len(history)+1)
	for _, m := range history {
		if m.Role == RoleUser || m.Role == RoleAssistant {
			messages = append(messages, m)
		}
	}
	messages = append(messages, ChatMessage{Role: RoleUser, Content: text})

	return g.complete(ctx, g.cfg.Timeout, &CompletionRequest{
		Model:       g.cfg.Model,
		System:      SystemPrompt,
		Messages:    messages,
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
	})
}

// Summarize writes a short summary of the given conversation lines. It
// returns an empty string when there is nothing to summarize.
func (g *Generator) Summarize(ctx context.Context, lines []string) (string, error) {
	if len(lines) == 0 {
		return "", nil
	}
	if len(lines) > summaryLines {
		lines = lines[len(lines)-summaryLines:]
	}

	prompt := fmt.Sprintf(`Создайте краткое резюме следующего разговора с HR-ботом:

%s

Резюме должно быть на русском языке и содержать:
- Основную тему вопроса
- Ключевые моменты обсуждения
- Результат консультации

Максимум 3-4 предложения.`, strings.Join(lines, "\n"))

	return g.complete(ctx, summaryTimeout, &CompletionRequest{
		Model:       g.cfg.Model,
		Messages:    []ChatMessage{{Role: RoleUser, Content: prompt}},
		MaxTokens:   summaryMaxTokens,
		Temperature: 0.1,
	})
}

func (g *Generator) complete(ctx context.Context, timeout time.Duration, req *CompletionRequest) (string, error) {
	if g.client == nil {
		return "", ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := g.client.Complete(ctx, req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, ErrTimeout) {
			err = fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		metrics.GenerationFailuresTotal.WithLabelValues(g.client.Name(), string(Classify(err))).Inc()
		g.log.Warn("generation failed",
			zap.String("provider", g.client.Name()),
			zap.String("kind", string(Classify(err))),
			zap.Error(err),
		)
		return "", err
	}

	content := strings.TrimSpace(resp.Content)
	if content == "" {
		metrics.GenerationFailuresTotal.WithLabelValues(g.client.Name(), string(FailureMalformed)).Inc()
		return "", fmt.Errorf("%s: %w: empty content", g.client.Name(), ErrMalformedResponse)
	}

	model := resp.Model
	if model == "" {
		model = g.client.Name()
	}
	metrics.RecordLLMUsage(model, resp.TokensIn, resp.TokensOut)

	g.log.Debug("generated answer",
		zap.String("provider", g.client.Name()),
		zap.Int("tokens_in", resp.TokensIn),
		zap.Int("tokens_out", resp.TokensOut),
		zap.Int64("latency_ms", resp.LatencyMs),
	)
	return content, nil
}
