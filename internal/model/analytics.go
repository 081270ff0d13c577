package model

import "time"

// Analytics is a daily rollup of bot activity.
type Analytics struct {
	ID                     uint      `gorm:"primaryKey" json:"id"`
	Date                   time.Time `gorm:"type:date;uniqueIndex;not null" json:"date"`
	TotalMessages          int64     `gorm:"default:0" json:"total_messages"`
	UniqueUsers            int64     `gorm:"default:0" json:"unique_users"`
	AvgResponseTime        float64   `gorm:"default:0" json:"avg_response_time"`
	EscalatedConversations int64     `gorm:"default:0" json:"escalated_conversations"`
	KnowledgeBaseHits      int64     `gorm:"default:0" json:"knowledge_base_hits"`
	MostCommonCategory     string    `gorm:"size:100" json:"most_common_category"`
	CreatedAt              time.Time `json:"created_at"`
}

// TableName keeps the rollup table name singular like the reporting queries expect.
func (Analytics) TableName() string {
	return "analytics"
}

// CategoryUsage is the summed article usage for one category.
type CategoryUsage struct {
	Category string `json:"category"`
	Usage    int64  `json:"usage"`
}

// DailyPoint is one day of a time series.
type DailyPoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// Overview is the dashboard summary.
type Overview struct {
	TotalConversations  int64           `json:"total_conversations"`
	ActiveConversations int64           `json:"active_conversations"`
	TotalUsers          int64           `json:"total_users"`
	WeekMessages        int64           `json:"week_messages"`
	AvgResponseTime     float64         `json:"avg_response_time"`
	ActiveArticles      int64           `json:"active_articles"`
	ActiveResponses     int64           `json:"active_responses"`
	PopularCategories   []CategoryUsage `json:"popular_categories"`
}

// DailySeries is the analytics page data.
type DailySeries struct {
	Messages      []DailyPoint    `json:"messages"`
	ResponseTimes []DailyPoint    `json:"response_times"`
	Categories    []CategoryUsage `json:"categories"`
}
