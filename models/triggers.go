package models

// Trigger is a situational cause of a craving.
type Trigger struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Icon  string `json:"icon"`
}

// Strategy is a coping technique used to resist a craving.
type Strategy struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Icon  string `json:"icon"`
}

// StrategyPartner is the strategy the partner_sos badge looks for.
const StrategyPartner = "partner"

var triggers = []Trigger{
	{ID: "stress", Label: "Stress", Icon: "😰"},
	{ID: "social", Label: "Social", Icon: "👥"},
	{ID: "boredom", Label: "Boredom", Icon: "😴"},
	{ID: "after_meal", Label: "After meals", Icon: "🍽️"},
	{ID: "coffee", Label: "Coffee", Icon: "☕"},
	{ID: "alcohol", Label: "Alcohol", Icon: "🍷"},
	{ID: "work", Label: "Work", Icon: "💼"},
	{ID: "driving", Label: "Driving", Icon: "🚗"},
	{ID: "phone", Label: "On the phone", Icon: "📱"},
	{ID: "morning", Label: "Morning", Icon: "🌅"},
	{ID: "evening", Label: "Evening", Icon: "🌙"},
	{ID: "anxiety", Label: "Anxiety", Icon: "😟"},
	{ID: "sadness", Label: "Sadness", Icon: "😢"},
	{ID: "anger", Label: "Anger", Icon: "😠"},
	{ID: "celebration", Label: "Celebration", Icon: "🎉"},
	{ID: "break", Label: "Break", Icon: "⏸️"},
	{ID: "menstrual", Label: "Menstrual phase", Icon: "🌸"},
	{ID: "other", Label: "Other", Icon: "❓"},
}

var strategies = []Strategy{
	{ID: "water", Label: "Water", Icon: "💧"},
	{ID: "breathing", Label: "Breathing", Icon: "🫁"},
	{ID: "walk", Label: "Walk", Icon: "🚶"},
	{ID: "distraction", Label: "Distraction", Icon: "🎮"},
	{ID: StrategyPartner, Label: "Partner", Icon: "💕"},
}

// Triggers returns every known trigger in display order.
func Triggers() []Trigger {
	out := make([]Trigger, len(triggers))
	copy(out, triggers)
	return out
}

// TriggerByID looks up a trigger.
func TriggerByID(id string) (Trigger, bool) {
	for _, t := range triggers {
		if t.ID == id {
			return t, true
		}
	}
	return Trigger{}, false
}

// TriggerLabel returns the label for id, or id itself when unknown.
func TriggerLabel(id string) string {
	if t, ok := TriggerByID(id); ok {
		return t.Label
	}
	return id
}

// Strategies returns every known strategy in display order.
func Strategies() []Strategy {
	out := make([]Strategy, len(strategies))
	copy(out, strategies)
	return out
}

// StrategyByID looks up a strategy.
func StrategyByID(id string) (Strategy, bool) {
	for _, s := range strategies {
		if s.ID == id {
			return s, true
		}
	}
	return Strategy{}, false
}
