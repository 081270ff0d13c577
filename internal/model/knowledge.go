package model

import (
	"strings"
	"time"
)

// KnowledgeArticle is a curated Q&A document. Articles are never deleted;
// deactivation keeps their usage history attributable.
type KnowledgeArticle struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Title      string    `gorm:"size:255;not null" json:"title"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	Category   string    `gorm:"size:100;index;not null" json:"category"`
	Tags       string    `gorm:"size:500" json:"-"`
	IsActive   bool      `gorm:"default:true;index" json:"is_active"`
	UsageCount int       `gorm:"default:0" json:"usage_count"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TagList returns the article tags in stored order.
func (a *KnowledgeArticle) TagList() []string {
	return SplitList(a.Tags)
}

// SetTags stores tags as a comma-separated list.
func (a *KnowledgeArticle) SetTags(tags []string) {
	a.Tags = JoinList(tags)
}

// CannedResponse is a keyword-triggered fixed reply.
type CannedResponse struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	TriggerKeywords string    `gorm:"size:500;not null" json:"trigger_keywords"`
	ResponseText    string    `gorm:"type:text;not null" json:"response_text"`
	Category        string    `gorm:"size:100;not null" json:"category"`
	Priority        int       `gorm:"default:0;index" json:"priority"`
	IsActive        bool      `gorm:"default:true;index" json:"is_active"`
	UsageCount      int       `gorm:"default:0" json:"usage_count"`
	CreatedAt       time.Time `json:"created_at"`
}

// Keywords returns the trimmed, lowercased, non-empty trigger keywords.
func (r *CannedResponse) Keywords() []string {
	items := SplitList(r.TriggerKeywords)
	for i := range items {
		items[i] = strings.ToLower(items[i])
	}
	return items
}

// SplitList splits a comma-separated list, trimming items and dropping empties.
func SplitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// JoinList is the inverse of SplitList.
func JoinList(items []string) string {
	var kept []string
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			kept = append(kept, item)
		}
	}
	return strings.Join(kept, ", ")
}

// ArticleView is the API representation of a knowledge article.
type ArticleView struct {
	KnowledgeArticle
	Tags []string `json:"tags"`
}

// NewArticleView wraps an article for JSON output.
func NewArticleView(a KnowledgeArticle) ArticleView {
	return ArticleView{KnowledgeArticle: a, Tags: a.TagList()}
}

// ArticleRequest creates or updates a knowledge article.
type ArticleRequest struct {
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Category string   `json:"category"`
	Tags     []string `json:"tags"`
}

// CannedResponseRequest creates or updates a canned response.
type CannedResponseRequest struct {
	Keywords string `json:"keywords"`
	Response string `json:"response"`
	Category string `json:"category"`
	Priority int    `json:"priority"`
}

// SearchPreview reports what the knowledge matcher would answer without
// counting the selection.
type SearchPreview struct {
	Found       bool         `json:"found"`
	Stage       string       `json:"stage,omitempty"`
	Article     *ArticleView `json:"article,omitempty"`
	Suggestions []string     `json:"suggestions,omitempty"`
}
