package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hrdesk/hr-assistant/internal/model"
)

const dayLayout = "2006-01-02"

// AnalyticsStore computes dashboard figures and daily rollups.
type AnalyticsStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewAnalyticsStore creates an analytics store.
func NewAnalyticsStore(db *gorm.DB) *AnalyticsStore {
	return &AnalyticsStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

type messageRow struct {
	Timestamp         time.Time
	MessageType       model.MessageType
	ResponseTime      *float64
	KnowledgeBaseUsed bool
	UserID            uint
}

func (s *AnalyticsStore) messagesBetween(ctx context.Context, from, to time.Time) ([]messageRow, error) {
	var rows []messageRow
	err := s.db.WithContext(ctx).Model(&model.Message{}).
		Select("messages.timestamp, messages.message_type, messages.response_time, messages.knowledge_base_used, conversations.user_id").
		Joins("JOIN conversations ON conversations.id = messages.conversation_id").
		Where("messages.timestamp >= ? AND messages.timestamp < ?", from, to).
		Order("messages.timestamp ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load messages for analytics: %w", err)
	}
	return rows, nil
}

// Overview returns the dashboard summary.
func (s *AnalyticsStore) Overview(ctx context.Context) (*model.Overview, error) {
	db := s.db.WithContext(ctx)
	var ov model.Overview

	if err := db.Model(&model.Conversation{}).Count(&ov.TotalConversations).Error; err != nil {
		return nil, fmt.Errorf("failed to count conversations: %w", err)
	}
	if err := db.Model(&model.Conversation{}).Where("status = ?", model.ConversationActive).
		Count(&ov.ActiveConversations).Error; err != nil {
		return nil, fmt.Errorf("failed to count active conversations: %w", err)
	}
	if err := db.Model(&model.User{}).Where("is_active = ?", true).Count(&ov.TotalUsers).Error; err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}

	now := s.now()
	rows, err := s.messagesBetween(ctx, now.AddDate(0, 0, -7), now.Add(time.Second))
	if err != nil {
		return nil, err
	}
	ov.WeekMessages = int64(len(rows))
	ov.AvgResponseTime = avgResponse(rows)

	if err := db.Model(&model.KnowledgeArticle{}).Where("is_active = ?", true).Count(&ov.ActiveArticles).Error; err != nil {
		return nil, fmt.Errorf("failed to count articles: %w", err)
	}
	if err := db.Model(&model.CannedResponse{}).Where("is_active = ?", true).Count(&ov.ActiveResponses).Error; err != nil {
		return nil, fmt.Errorf("failed to count canned responses: %w", err)
	}

	ov.PopularCategories, err = NewArticleStore(s.db).CategoryUsage(ctx, 5)
	if err != nil {
		return nil, err
	}
	return &ov, nil
}

// DailySeries returns per-day message counts and average response times for
// the last days days, oldest first. Days without messages are omitted.
func (s *AnalyticsStore) DailySeries(ctx context.Context, days int) (*model.DailySeries, error) {
	now := s.now()
	from := truncateDay(now).AddDate(0, 0, -(days - 1))
	rows, err := s.messagesBetween(ctx, from, now.Add(time.Second))
	if err != nil {
		return nil, err
	}

	series := &model.DailySeries{
		Messages:      []model.DailyPoint{},
		ResponseTimes: []model.DailyPoint{},
	}

	var (
		day     string
		count   int64
		dayRows []messageRow
	)
	flush := func() {
		if day == "" {
			return
		}
		series.Messages = append(series.Messages, model.DailyPoint{Date: day, Value: float64(count)})
		if avg := avgResponse(dayRows); avg > 0 {
			series.ResponseTimes = append(series.ResponseTimes, model.DailyPoint{Date: day, Value: avg})
		}
	}
	for _, r := range rows {
		d := r.Timestamp.UTC().Format(dayLayout)
		if d != day {
			flush()
			day, count, dayRows = d, 0, nil
		}
		count++
		dayRows = append(dayRows, r)
	}
	flush()

	series.Categories, err = NewArticleStore(s.db).CategoryUsage(ctx, 0)
	if err != nil {
		return nil, err
	}
	return series, nil
}

// Rollup computes and upserts the analytics row for the UTC day containing day.
func (s *AnalyticsStore) Rollup(ctx context.Context, day time.Time) (*model.Analytics, error) {
	start := truncateDay(day)
	end := start.AddDate(0, 0, 1)

	rows, err := s.messagesBetween(ctx, start, end)
	if err != nil {
		return nil, err
	}

	row := model.Analytics{
		Date:            start,
		TotalMessages:   int64(len(rows)),
		AvgResponseTime: avgResponse(rows),
		CreatedAt:       s.now(),
	}
	users := make(map[uint]struct{})
	for _, r := range rows {
		if r.MessageType == model.MessageTypeUser {
			users[r.UserID] = struct{}{}
		}
		if r.MessageType == model.MessageTypeBot && r.KnowledgeBaseUsed {
			row.KnowledgeBaseHits++
		}
	}
	row.UniqueUsers = int64(len(users))

	if err := s.db.WithContext(ctx).Model(&model.Conversation{}).
		Where("status = ? AND ended_at >= ? AND ended_at < ?", model.ConversationEscalated, start, end).
		Count(&row.EscalatedConversations).Error; err != nil {
		return nil, fmt.Errorf("failed to count escalations: %w", err)
	}

	top, err := NewArticleStore(s.db).CategoryUsage(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(top) > 0 {
		row.MostCommonCategory = top[0].Category
	}

	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"total_messages", "unique_users", "avg_response_time",
			"escalated_conversations", "knowledge_base_hits", "most_common_category",
		}),
	}).Create(&row).Error
	if err != nil {
		return nil, fmt.Errorf("failed to store analytics rollup: %w", err)
	}
	return &row, nil
}

// History returns stored rollups newest first.
func (s *AnalyticsStore) History(ctx context.Context, limit int) ([]model.Analytics, error) {
	var rows []model.Analytics
	if err := s.db.WithContext(ctx).Order("date DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load analytics history: %w", err)
	}
	return rows, nil
}

func avgResponse(rows []messageRow) float64 {
	var sum float64
	var n int
	for _, r := range rows {
		if r.MessageType == model.MessageTypeBot && r.ResponseTime != nil {
			sum += *r.ResponseTime
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
