package domain

import "fmt"

type Severity string

const (
	SeverityMinor     Severity = "MINOR"
	SeverityModerate  Severity = "MODERATE"
	SeverityMajor     Severity = "MAJOR"
	SeverityTotalLoss Severity = "TOTAL_LOSS"
)

func (s Severity) Valid() bool {
	_, ok := severityEffects[s]
	return ok
}

// SeverityThresholds are the repair-cost boundaries, in cents, between
// severities. A cost below Minor is MINOR, below Moderate is MODERATE,
// below Major is MAJOR, and anything else is TOTAL_LOSS.
type SeverityThresholds struct {
	MinorCents    int64 `yaml:"minor_cents"`
	ModerateCents int64 `yaml:"moderate_cents"`
	MajorCents    int64 `yaml:"major_cents"`
}

func (t SeverityThresholds) Validate() error {
	if t.MinorCents <= 0 || t.ModerateCents <= t.MinorCents || t.MajorCents <= t.ModerateCents {
		return fmt.Errorf("severity thresholds must be positive and increasing: minor=%d moderate=%d major=%d",
			t.MinorCents, t.ModerateCents, t.MajorCents)
	}
	return nil
}

// ClassifySeverity maps a repair cost onto the threshold ladder.
func ClassifySeverity(costCents int64, t SeverityThresholds) Severity {
	switch {
	case costCents < t.MinorCents:
		return SeverityMinor
	case costCents < t.ModerateCents:
		return SeverityModerate
	case costCents < t.MajorCents:
		return SeverityMajor
	default:
		return SeverityTotalLoss
	}
}

// SeverityEffect is what a severity implies for the vehicle and for admins.
type SeverityEffect struct {
	RequiresMaintenance   bool
	RequiresAdminDecision bool
}

var severityEffects = map[Severity]SeverityEffect{
	SeverityMinor:     {},
	SeverityModerate:  {RequiresAdminDecision: true},
	SeverityMajor:     {RequiresMaintenance: true},
	SeverityTotalLoss: {RequiresMaintenance: true},
}

// EffectOf looks up the side effects of a severity. Unknown severities
// have no effect.
func EffectOf(s Severity) SeverityEffect {
	return severityEffects[s]
}
