// Package models holds the plaintext records that the state cache keeps in
// memory and that are encrypted whole before they reach storage.
package models

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// ErrInvalid is returned when a record fails validation.
var ErrInvalid = errors.New("invalid record")

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// DefaultCigarettesPerPack is used when a profile does not set a pack size.
const DefaultCigarettesPerPack = 20

// SavingsGoal is something the user is saving towards.
type SavingsGoal struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
}

// Profile is the user's smoking history and onboarding state.
type Profile struct {
	Age                 *int         `json:"age,omitempty" yaml:"age,omitempty"`
	YearsSmoked         *int         `json:"yearsSmoked,omitempty" yaml:"yearsSmoked,omitempty"`
	CigarettesPerDay    int          `json:"cigarettesPerDay" yaml:"cigarettesPerDay"`
	CostPerPack         float64      `json:"costPerPack" yaml:"costPerPack"`
	CigarettesPerPack   int          `json:"cigarettesPerPack" yaml:"cigarettesPerPack"`
	QuitDate            *time.Time   `json:"quitDate,omitempty" yaml:"quitDate,omitempty"`
	Motivation          string       `json:"motivation" yaml:"motivation"`
	Triggers            []string     `json:"triggers" yaml:"triggers"`
	PartnerPhone        string       `json:"partnerPhone,omitempty" yaml:"partnerPhone,omitempty"`
	SavingsGoal         *SavingsGoal `json:"savingsGoal,omitempty" yaml:"savingsGoal,omitempty"`
	TrackCycle          bool         `json:"trackCycle" yaml:"trackCycle"`
	IsCycleActive       bool         `json:"isCycleActive" yaml:"isCycleActive"`
	OnboardingCompleted bool         `json:"onboardingCompleted" yaml:"onboardingCompleted"`
	TutorialSeen        bool         `json:"tutorialSeen" yaml:"tutorialSeen"`
	LastBackupDate      *time.Time   `json:"lastBackupDate,omitempty" yaml:"lastBackupDate,omitempty"`
}

// DefaultProfile is the baseline used before the user saves anything.
func DefaultProfile() Profile {
	return Profile{
		CigarettesPerPack: DefaultCigarettesPerPack,
		Triggers:          []string{},
	}
}

// PackSize returns CigarettesPerPack, falling back to the default for unset or
// non-positive values.
func (p Profile) PackSize() int {
	if p.CigarettesPerPack <= 0 {
		return DefaultCigarettesPerPack
	}
	return p.CigarettesPerPack
}

// Clone returns a deep copy of p.
func (p Profile) Clone() Profile {
	cp := p
	cp.Age = clonePtr(p.Age)
	cp.YearsSmoked = clonePtr(p.YearsSmoked)
	cp.QuitDate = clonePtr(p.QuitDate)
	cp.LastBackupDate = clonePtr(p.LastBackupDate)
	cp.SavingsGoal = clonePtr(p.SavingsGoal)
	cp.Triggers = slices.Clone(p.Triggers)
	return cp
}

// Validate rejects negative counts and prices.
func (p Profile) Validate() error {
	if p.CigarettesPerDay < 0 {
		return invalidf("cigarettesPerDay must not be negative")
	}
	if p.CostPerPack < 0 {
		return invalidf("costPerPack must not be negative")
	}
	if p.CigarettesPerPack < 0 {
		return invalidf("cigarettesPerPack must not be negative")
	}
	if p.SavingsGoal != nil && p.SavingsGoal.Amount < 0 {
		return invalidf("savings goal amount must not be negative")
	}
	for _, t := range p.Triggers {
		if _, ok := TriggerByID(t); !ok {
			return invalidf("unknown trigger %q", t)
		}
	}
	return nil
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	cp := *v
	return &cp
}
