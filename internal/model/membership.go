package model

import "time"

// Plan is the tier a user is on. It is always derived from
// membership_expires_at and never stored on the user row.
type Plan string

const (
	PlanFree   Plan = "free"
	PlanMember Plan = "member"
)

// NormalizePlan maps the legacy "pro" label onto PlanMember.
func NormalizePlan(p Plan) Plan {
	if p == "pro" {
		return PlanMember
	}
	return p
}

// CycleSource records what created a membership cycle.
type CycleSource string

const (
	SourceRedeem            CycleSource = "redeem"
	SourceCreem             CycleSource = "creem"
	SourceCreemSubscription CycleSource = "creem_subscription"
	SourceStripe            CycleSource = "stripe"
	SourceTest              CycleSource = "test"
	SourceFallback          CycleSource = "fallback"
	SourceDefault           CycleSource = "default"
)

// MembershipCycle is a time-bounded window carrying a topic/event quota.
type MembershipCycle struct {
	ID                 string      `db:"id" json:"id"`
	UserID             string      `db:"user_id" json:"user_id"`
	Plan               Plan        `db:"plan" json:"plan"`
	StartsAt           time.Time   `db:"starts_at" json:"starts_at"`
	EndsAt             time.Time   `db:"ends_at" json:"ends_at"`
	TopicQuota         int         `db:"topic_quota" json:"topic_quota"`
	EventQuotaPerTopic int         `db:"event_quota_per_topic" json:"event_quota_per_topic"`
	Source             CycleSource `db:"source" json:"source"`
	Reference          *string     `db:"reference" json:"reference,omitempty"`
	CreatedAt          time.Time   `db:"created_at" json:"created_at"`
}

// ActiveAt reports whether t falls inside [StartsAt, EndsAt).
func (c *MembershipCycle) ActiveAt(t time.Time) bool {
	return !t.Before(c.StartsAt) && t.Before(c.EndsAt)
}

// QuotaSnapshot is the computed plan/quota view returned to clients.
type QuotaSnapshot struct {
	Plan                Plan       `json:"plan"`
	CycleID             string     `json:"cycle_id,omitempty"`
	TopicQuotaTotal     int        `json:"topic_quota_total"`
	TopicQuotaUsed      int        `json:"topic_quota_used"`
	TopicQuotaRemaining int        `json:"topic_quota_remaining"`
	EventQuotaPerTopic  int        `json:"event_quota_per_topic"`
	ExpiresAt           *time.Time `json:"expires_at,omitempty"`
}

// DailyUsage is a user's reading counter for one UTC day.
type DailyUsage struct {
	Plan      Plan      `json:"plan"`
	Day       time.Time `json:"day"`
	Used      int       `json:"used"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
}
