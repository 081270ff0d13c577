package knowledge

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/hrdesk/hr-assistant/internal/model"
	"github.com/hrdesk/hr-assistant/pkg/logger"
	"github.com/hrdesk/hr-assistant/pkg/metrics"
)

// Stage names the matcher step that selected an article.
type Stage string

const (
	StageNone     Stage = ""
	StageTitle    Stage = "title"
	StageCategory Stage = "category"
	StageContent  Stage = "content"
	StageTags     Stage = "tags"
)

const closingNote = "💡 Если у вас остались вопросы, обратитесь к HR-специалисту."

// ArticleRepository is the persistence the matcher needs.
type ArticleRepository interface {
	ListActive(ctx context.Context) ([]model.KnowledgeArticle, error)
	Popular(ctx context.Context, limit int) ([]model.KnowledgeArticle, error)
	IncrementUsage(ctx context.Context, id uint) error
}

// Matcher searches active articles by title, category, content and tags.
type Matcher struct {
	articles ArticleRepository
	table    *Table
	log      *logger.Logger
}

// NewMatcher creates a matcher over the given repository and category table.
func NewMatcher(articles ArticleRepository, table *Table, log *logger.Logger) *Matcher {
	if table == nil {
		table = DefaultTable()
	}
	return &Matcher{articles: articles, table: table, log: log.Named("knowledge")}
}

// Table returns the category table the matcher was built with.
func (m *Matcher) Table() *Table {
	return m.table
}

// Find returns the article that would answer query and the stage that chose
// it, without touching usage counters. A nil article means no match.
func (m *Matcher) Find(ctx context.Context, query string) (*model.KnowledgeArticle, Stage, error) {
	q := normalizeQuery(query)
	if q == "" {
		return nil, StageNone, nil
	}

	articles, err := m.articles.ListActive(ctx)
	if err != nil {
		return nil, StageNone, err
	}

	for i := range articles {
		title := strings.ToLower(strings.TrimSpace(articles[i].Title))
		if title == "" {
			continue
		}
		if strings.Contains(title, q) {
			return &articles[i], StageTitle, nil
		}
	}

	if category, ok := m.table.Infer(q); ok {
		if a := mostUsed(articles, func(a *model.KnowledgeArticle) bool {
			return a.Category == category
		}); a != nil {
			return a, StageCategory, nil
		}
	}

	if a := mostUsed(articles, func(a *model.KnowledgeArticle) bool {
		return strings.Contains(strings.ToLower(a.Content), q)
	}); a != nil {
		return a, StageContent, nil
	}

	if a := mostUsed(articles, func(a *model.KnowledgeArticle) bool {
		for _, tag := range a.TagList() {
			if strings.Contains(strings.ToLower(tag), q) {
				return true
			}
		}
		return false
	}); a != nil {
		return a, StageTags, nil
	}

	return nil, StageNone, nil
}

// Search finds an answer for query, counts the selection once and returns
// the formatted article.
func (m *Matcher) Search(ctx context.Context, query string) (string, bool, error) {
	article, stage, err := m.Find(ctx, query)
	if err != nil {
		return "", false, fmt.Errorf("failed to search knowledge base: %w", err)
	}
	if article == nil {
		return "", false, nil
	}

	if err := m.articles.IncrementUsage(ctx, article.ID); err != nil {
		m.log.Warn("failed to count article usage",
			zap.Uint("article_id", article.ID),
			zap.Error(err),
		)
	} else {
		article.UsageCount++
	}
	metrics.KnowledgeHitsTotal.WithLabelValues(string(stage)).Inc()

	m.log.Debug("knowledge base hit",
		zap.Uint("article_id", article.ID),
		zap.String("stage", string(stage)),
	)
	return Format(article), true, nil
}

// Popular returns the most used active articles.
func (m *Matcher) Popular(ctx context.Context, limit int) ([]model.KnowledgeArticle, error) {
	return m.articles.Popular(ctx, limit)
}

// ByCategory returns the active articles of a category, most used first.
func (m *Matcher) ByCategory(ctx context.Context, category string) ([]model.KnowledgeArticle, error) {
	articles, err := m.articles.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	var out []model.KnowledgeArticle
	for _, a := range articles {
		if a.Category == category {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UsageCount > out[j].UsageCount
	})
	return out, nil
}

// Format renders an article as a chat answer.
func Format(a *model.KnowledgeArticle) string {
	var b strings.Builder
	b.WriteString("📋 **")
	b.WriteString(a.Title)
	b.WriteString("**\n\n")
	b.WriteString(a.Content)
	if tags := a.TagList(); len(tags) > 0 {
		b.WriteString("\n\n🏷️ Теги: ")
		b.WriteString(strings.Join(tags, ", "))
	}
	b.WriteString("\n\n")
	b.WriteString(closingNote)
	return b.String()
}

// mostUsed returns the matching article with the highest usage counter.
// Articles are in id order, so the first of equals has the lowest id.
func mostUsed(articles []model.KnowledgeArticle, match func(*model.KnowledgeArticle) bool) *model.KnowledgeArticle {
	var best *model.KnowledgeArticle
	for i := range articles {
		a := &articles[i]
		if !match(a) {
			continue
		}
		if best == nil || a.UsageCount > best.UsageCount {
			best = a
		}
	}
	return best
}

func normalizeQuery(query string) string {
	q := strings.ToLower(strings.TrimSpace(query))
	q = strings.TrimRight(q, "?!.")
	return strings.TrimSpace(q)
}

var commonQuestions = []string{
	"Как оформить отпуск?",
	"Что делать при болезни?",
	"Какой график работы?",
	"Какие есть льготы?",
	"Как получить справку?",
	"Где найти документы?",
	"Как связаться с HR?",
	"Когда выплачивается зарплата?",
	"Как оформить командировку?",
	"Что делать при опоздании?",
}

// SimilarQuestions suggests frequent questions sharing a word with query.
func SimilarQuestions(query string, limit int) []string {
	queryWords := words(query)
	if len(queryWords) == 0 || limit <= 0 {
		return nil
	}

	var out []string
	for _, question := range commonQuestions {
		for w := range words(question) {
			if queryWords[w] {
				out = append(out, question)
				break
			}
		}
		if len(out) >= limit {
			break
		}
	}
	return out
}

func words(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		set[w] = true
	}
	return set
}
