package model

import "time"

type PageView struct {
	Path      string
	Referrer  string
	VisitorID string
	UserAgent string
	CreatedAt time.Time
}

type DailyAnalytics struct {
	Day            time.Time `db:"day" json:"day"`
	PageViews      int       `db:"page_views" json:"page_views"`
	UniqueVisitors int       `db:"unique_visitors" json:"unique_visitors"`
}

// Prompt is an operator-editable LLM prompt.
type Prompt struct {
	Name      string    `db:"name" json:"name"`
	Content   string    `db:"content" json:"content"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
