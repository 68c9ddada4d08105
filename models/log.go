package models

import (
	"cmp"
	"slices"
	"time"
)

// Outcome is how a craving ended.
type Outcome string

const (
	OutcomeResisted Outcome = "resisted"
	OutcomeRelapse  Outcome = "relapse"
)

// LogType distinguishes a resisted craving from a smoked cigarette.
type LogType string

const (
	LogTypeCraving LogType = "craving"
	LogTypeRelapse LogType = "relapse"
)

// Intensity bounds. Zero means unset and is replaced by DefaultIntensity.
const (
	MinIntensity     = 1
	MaxIntensity     = 4
	DefaultIntensity = 3
)

// LogEntry is one craving or relapse. ID and Timestamp are assigned by the
// store when the entry is appended; Date is when the user says it happened.
type LogEntry struct {
	ID         uint64    `json:"id,omitempty"`
	Type       LogType   `json:"type"`
	Outcome    Outcome   `json:"outcome"`
	Intensity  int       `json:"intensity"`
	Triggers   []string  `json:"triggers"`
	Strategies []string  `json:"strategies"`
	Notes      string    `json:"notes,omitempty"`
	Date       time.Time `json:"date,omitzero"`
	Timestamp  time.Time `json:"timestamp,omitzero"`
}

// IsRelapse reports whether the entry records a smoked cigarette.
func (l LogEntry) IsRelapse() bool {
	return l.Outcome == OutcomeRelapse
}

// When returns Date, or Timestamp when no date was given.
func (l LogEntry) When() time.Time {
	if l.Date.IsZero() {
		return l.Timestamp
	}
	return l.Date
}

// HasStrategy reports whether id was among the strategies used.
func (l LogEntry) HasStrategy(id string) bool {
	return slices.Contains(l.Strategies, id)
}

// Clone returns a deep copy of l.
func (l LogEntry) Clone() LogEntry {
	cp := l
	cp.Triggers = slices.Clone(l.Triggers)
	cp.Strategies = slices.Clone(l.Strategies)
	return cp
}

// Normalize fills defaults: intensity 3, type derived from outcome, and
// non-nil trigger and strategy sets.
func (l *LogEntry) Normalize() {
	if l.Intensity == 0 {
		l.Intensity = DefaultIntensity
	}
	if l.Type == "" {
		if l.Outcome == OutcomeRelapse {
			l.Type = LogTypeRelapse
		} else {
			l.Type = LogTypeCraving
		}
	}
	if l.Triggers == nil {
		l.Triggers = []string{}
	}
	if l.Strategies == nil {
		l.Strategies = []string{}
	}
}

// Validate checks outcome, intensity, triggers and strategies.
func (l LogEntry) Validate() error {
	switch l.Outcome {
	case OutcomeResisted, OutcomeRelapse:
	default:
		return invalidf("unknown outcome %q", l.Outcome)
	}
	switch l.Type {
	case LogTypeCraving, LogTypeRelapse, "":
	default:
		return invalidf("unknown log type %q", l.Type)
	}
	if l.Intensity != 0 && (l.Intensity < MinIntensity || l.Intensity > MaxIntensity) {
		return invalidf("intensity %d out of range %d-%d", l.Intensity, MinIntensity, MaxIntensity)
	}
	for _, t := range l.Triggers {
		if _, ok := TriggerByID(t); !ok {
			return invalidf("unknown trigger %q", t)
		}
	}
	for _, s := range l.Strategies {
		if _, ok := StrategyByID(s); !ok {
			return invalidf("unknown strategy %q", s)
		}
	}
	return nil
}

// SortLogs returns a copy of logs ordered newest first by timestamp. Equal
// timestamps fall back to the higher ID first.
func SortLogs(logs []LogEntry) []LogEntry {
	out := make([]LogEntry, len(logs))
	for i, l := range logs {
		out[i] = l.Clone()
	}
	slices.SortStableFunc(out, func(a, b LogEntry) int {
		if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return out
}
