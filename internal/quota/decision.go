package quota

import "tarot/internal/model"

// Decision is the outcome of a quota check.
type Decision struct {
	Allowed   bool   `json:"allowed"`
	Reason    string `json:"reason,omitempty"`
	Limit     int    `json:"limit"`
	Used      int    `json:"used"`
	Remaining int    `json:"remaining"`
}

func decide(used, limit int, reason string) Decision {
	d := Decision{Limit: limit, Used: used, Remaining: remaining(limit, used)}
	if used >= limit {
		d.Reason = reason
		return d
	}
	d.Allowed = true
	return d
}

func remaining(limit, used int) int {
	if used >= limit {
		return 0
	}
	return limit - used
}

// TopicDecision checks topic creation. For members used counts topics in the
// active cycle; for free users it is the current week's counter.
func TopicDecision(plan model.Plan, used, cycleQuota int) Decision {
	if plan == model.PlanMember {
		return decide(used, cycleQuota, ReasonProQuota)
	}
	return decide(used, FreeWeeklyTopics, ReasonFreeWeeklyQuota)
}

// EventDecision checks event creation on a topic. snapshot is the event
// count frozen at downgrade, or nil when the topic was never grandfathered.
func EventDecision(plan model.Plan, events, cycleEventQuota int, snapshot *int) Decision {
	if plan == model.PlanMember {
		return decide(events, cycleEventQuota, ReasonProEventQuota)
	}
	if snapshot != nil {
		return decide(events, *snapshot+DowngradeEventAllowance, ReasonDowngradedEventQuota)
	}
	return decide(events, FreeEventsPerTopic, ReasonFreeEventQuota)
}

// Remaining returns limit-used clamped at zero.
func Remaining(limit, used int) int {
	return remaining(limit, used)
}
