// Package quota holds the pure arithmetic behind plans, weekly windows and
// topic/event allowances. Nothing here touches the database.
package quota

import (
	"time"

	"tarot/internal/model"
)

const (
	FreeWeeklyTopics        = 1
	FreeEventsPerTopic      = 3
	MemberTopicsPerCycle    = 30
	MemberEventsPerTopic    = 10
	FreeDailyReadings       = 2
	MemberDailyReadings     = 50
	PaidCycleDays           = 30
	FallbackCycleDays       = 365
	DowngradeEventAllowance = FreeEventsPerTopic
)

// Denial reasons returned to clients.
const (
	ReasonFreeWeeklyQuota      = "free_weekly_quota_exceeded"
	ReasonProQuota             = "pro_quota_exceeded"
	ReasonFreeEventQuota       = "free_event_quota_exceeded"
	ReasonDowngradedEventQuota = "downgraded_event_quota_exceeded"
	ReasonProEventQuota        = "pro_event_quota_exceeded"
	ReasonDailyLimit           = "daily_limit_reached"
)

// openEnded is used as the end of free cycles, which only close when a paid
// cycle opens.
const openEnded = 100 * 365 * 24 * time.Hour

// PlanAt derives the plan tier from the cached expiry.
func PlanAt(expiresAt *time.Time, now time.Time) model.Plan {
	if expiresAt != nil && expiresAt.After(now) {
		return model.PlanMember
	}
	return model.PlanFree
}

// WeekStart returns Monday 00:00 UTC of the week containing t.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// NextWeekStart returns the Monday after the week containing t.
func NextWeekStart(t time.Time) time.Time {
	return WeekStart(t).AddDate(0, 0, 7)
}

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ExtendFrom returns the point a new grant starts from: the later of the
// current expiry and now, so unused paid time is never lost.
func ExtendFrom(current *time.Time, now time.Time) time.Time {
	if current != nil && current.After(now) {
		return *current
	}
	return now
}

// DailyLimit returns the number of readings a plan may consume per day.
func DailyLimit(plan model.Plan) int {
	if plan == model.PlanMember {
		return MemberDailyReadings
	}
	return FreeDailyReadings
}

// MemberCycle builds a paid cycle of the given length starting at from.
func MemberCycle(userID string, from time.Time, days int, source model.CycleSource) model.MembershipCycle {
	return model.MembershipCycle{
		UserID:             userID,
		Plan:               model.PlanMember,
		StartsAt:           from,
		EndsAt:             from.AddDate(0, 0, days),
		TopicQuota:         MemberTopicsPerCycle,
		EventQuotaPerTopic: MemberEventsPerTopic,
		Source:             source,
	}
}

// FallbackCycle builds the member cycle created when a member has none. It
// ends at limit when that comes first; callers pass the earlier of the cached
// expiry and the start of the next granted member cycle.
func FallbackCycle(userID string, now time.Time, limit time.Time) model.MembershipCycle {
	c := MemberCycle(userID, now, FallbackCycleDays, model.SourceFallback)
	if limit.Before(c.EndsAt) {
		c.EndsAt = limit
	}
	return c
}

// FreeCycle builds the open-ended free cycle.
func FreeCycle(userID string, now time.Time) model.MembershipCycle {
	return model.MembershipCycle{
		UserID:             userID,
		Plan:               model.PlanFree,
		StartsAt:           now,
		EndsAt:             now.Add(openEnded),
		TopicQuota:         FreeWeeklyTopics,
		EventQuotaPerTopic: FreeEventsPerTopic,
		Source:             model.SourceDefault,
	}
}
