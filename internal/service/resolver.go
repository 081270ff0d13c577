package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/hrdesk/hr-assistant/internal/llm"
	"github.com/hrdesk/hr-assistant/pkg/logger"
	"github.com/hrdesk/hr-assistant/pkg/metrics"
)

// Source names the stage that produced an answer.
type Source string

const (
	SourceKnowledgeBase Source = "knowledge_base"
	SourceCanned        Source = "canned_response"
	SourceGenerative    Source = "generative"
	SourceFallback      Source = "fallback"
)

// Apology texts returned when the generative backend fails.
const (
	ApologyTimeout   = "Извините, сервис временно перегружен. Попробуйте повторить запрос через несколько секунд или обратитесь к HR-специалисту."
	ApologyTransport = "Извините, произошла ошибка связи с сервисом. Обратитесь к HR-специалисту."
	ApologyMalformed = "Извините, произошла ошибка при генерации ответа. Попробуйте переформулировать вопрос или обратитесь к HR-специалисту."
)

// Apology returns the user-facing text for a generative failure class.
func Apology(kind llm.FailureKind) string {
	switch kind {
	case llm.FailureTimeout:
		return ApologyTimeout
	case llm.FailureMalformed:
		return ApologyMalformed
	default:
		return ApologyTransport
	}
}

// KnowledgeSearcher is the first resolution stage.
type KnowledgeSearcher interface {
	Search(ctx context.Context, query string) (string, bool, error)
}

// ReplyMatcher is the second resolution stage.
type ReplyMatcher interface {
	Match(ctx context.Context, query string) (string, bool, error)
}

// HistoryBuilder supplies conversation context to the generator.
type HistoryBuilder interface {
	Build(ctx context.Context, conversationID uint) ([]llm.ChatMessage, error)
}

// AnswerGenerator is the generative backend.
type AnswerGenerator interface {
	Generate(ctx context.Context, text string, history []llm.ChatMessage) (string, error)
}

// Resolution is the answer to one inbound message.
type Resolution struct {
	Text   string
	Source Source
}

// Resolver runs the knowledge base, canned response and generative stages
// in order and always produces a non-empty answer.
type Resolver struct {
	knowledge KnowledgeSearcher
	canned    ReplyMatcher
	history   HistoryBuilder
	generator AnswerGenerator
	log       *logger.Logger
}

// NewResolver creates a resolver.
func NewResolver(knowledge KnowledgeSearcher, canned ReplyMatcher, history HistoryBuilder, generator AnswerGenerator, log *logger.Logger) *Resolver {
	return &Resolver{
		knowledge: knowledge,
		canned:    canned,
		history:   history,
		generator: generator,
		log:       log.Named("resolver"),
	}
}

var tracer = otel.Tracer("github.com/hrdesk/hr-assistant/internal/service")

// Resolve answers text for a conversation. It never fails: stage errors and
// panics are logged and skipped, and generative failures become apologies.
func (r *Resolver) Resolve(ctx context.Context, text string, conversationID uint) Resolution {
	ctx, span := tracer.Start(ctx, "resolver.Resolve")
	defer span.End()
	start := time.Now()

	res := r.resolve(ctx, text, conversationID)
	span.SetAttributes(attribute.String("hrbot.source", string(res.Source)))
	metrics.RecordResolution(string(res.Source), time.Since(start).Seconds())
	return res
}

func (r *Resolver) resolve(ctx context.Context, text string, conversationID uint) Resolution {
	if answer, ok := r.stage(ctx, "knowledge_base", func(ctx context.Context) (string, bool, error) {
		return r.knowledge.Search(ctx, text)
	}); ok {
		return Resolution{Text: answer, Source: SourceKnowledgeBase}
	}

	if answer, ok := r.stage(ctx, "canned_response", func(ctx context.Context) (string, bool, error) {
		return r.canned.Match(ctx, text)
	}); ok {
		return Resolution{Text: answer, Source: SourceCanned}
	}

	var history []llm.ChatMessage
	r.stage(ctx, "context", func(ctx context.Context) (string, bool, error) {
		var err error
		history, err = r.history.Build(ctx, conversationID)
		return "", false, err
	})

	var genErr error
	answer, ok := r.stage(ctx, "generative", func(ctx context.Context) (string, bool, error) {
		answer, err := r.generator.Generate(ctx, text, history)
		if err != nil {
			genErr = err
			return "", false, err
		}
		return answer, true, nil
	})
	if ok {
		return Resolution{Text: answer, Source: SourceGenerative}
	}

	kind := llm.FailureTransport
	if genErr != nil {
		kind = llm.Classify(genErr)
	}
	return Resolution{Text: Apology(kind), Source: SourceFallback}
}

// stage runs one resolution step, converting panics into errors. Only a
// non-blank answer counts as a hit.
func (r *Resolver) stage(ctx context.Context, name string, fn func(context.Context) (string, bool, error)) (answer string, ok bool) {
	ctx, span := tracer.Start(ctx, "resolver."+name)
	defer span.End()

	defer func() {
		if p := recover(); p != nil {
			err := fmt.Errorf("panic in %s stage: %v", name, p)
			r.fail(span, name, err)
			answer, ok = "", false
		}
	}()

	answer, ok, err := fn(ctx)
	if err != nil {
		r.fail(span, name, err)
		return "", false
	}
	if !ok || strings.TrimSpace(answer) == "" {
		return "", false
	}
	span.SetAttributes(attribute.Bool("hrbot.hit", true))
	return answer, true
}

func (r *Resolver) fail(span trace.Span, name string, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	metrics.StageErrorsTotal.WithLabelValues(name).Inc()
	r.log.Warn("resolution stage failed", zap.String("stage", name), zap.Error(err))
}
