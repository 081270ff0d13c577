package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hrdesk/hr-assistant/internal/model"
	"github.com/hrdesk/hr-assistant/pkg/logger"
)

// ResponseRepository is the persistence the canned matcher needs.
type ResponseRepository interface {
	ListActive(ctx context.Context) ([]model.CannedResponse, error)
	IncrementUsage(ctx context.Context, id uint) error
}

// CannedMatcher answers with keyword-triggered fixed replies.
type CannedMatcher struct {
	responses ResponseRepository
	log       *logger.Logger
}

// NewCannedMatcher creates a canned response matcher.
func NewCannedMatcher(responses ResponseRepository, log *logger.Logger) *CannedMatcher {
	return &CannedMatcher{responses: responses, log: log.Named("canned")}
}

// Match returns the text of the highest priority response with a trigger
// keyword contained in query.
func (m *CannedMatcher) Match(ctx context.Context, query string) (string, bool, error) {
	responses, err := m.responses.ListActive(ctx)
	if err != nil {
		return "", false, fmt.Errorf("failed to match canned responses: %w", err)
	}

	q := strings.ToLower(query)
	for i := range responses {
		r := &responses[i]
		for _, kw := range r.Keywords() {
			if !strings.Contains(q, kw) {
				continue
			}
			if err := m.responses.IncrementUsage(ctx, r.ID); err != nil {
				m.log.Warn("failed to count canned response usage",
					zap.Uint("response_id", r.ID),
					zap.Error(err),
				)
			}
			return r.ResponseText, true, nil
		}
	}
	return "", false, nil
}
