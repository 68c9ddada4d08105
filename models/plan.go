package models

import (
	"strings"
	"time"
	"unicode/utf8"
)

// MaxPlanActionLength bounds the free-text action of a coping plan.
const MaxPlanActionLength = 500

// PlanEntry is an if-then coping plan: when TriggerID happens, do Action.
type PlanEntry struct {
	ID        uint64    `json:"id,omitempty"`
	TriggerID string    `json:"triggerId"`
	Action    string    `json:"action"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
}

// Validate requires a known trigger and a non-empty action.
func (p PlanEntry) Validate() error {
	if _, ok := TriggerByID(p.TriggerID); !ok {
		return invalidf("unknown trigger %q", p.TriggerID)
	}
	if strings.TrimSpace(p.Action) == "" {
		return invalidf("plan action must not be empty")
	}
	if utf8.RuneCountInString(p.Action) > MaxPlanActionLength {
		return invalidf("plan action exceeds %d characters", MaxPlanActionLength)
	}
	return nil
}
