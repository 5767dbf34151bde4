package explain

import (
	"strings"

	"github.com/spendpulse/spendpulse/internal/scoring"
)

// Nudge is one behavioural suggestion built from aggregated metrics only.
type Nudge struct {
	Title      string  `json:"title"`
	Message    string  `json:"message"`
	WhyThis    string  `json:"why_this"`
	ActionStep string  `json:"action_step"`
	Confidence float64 `json:"confidence"`
}

// Nudges produces deterministic behavioural nudges from the risk band and
// ranked drivers. No raw transaction data is consulted. At most 5.
func Nudges(band scoring.Band, topDrivers []string) []Nudge {
	joined := strings.ToLower(strings.Join(topDrivers, " "))

	var nudges []Nudge
	if strings.Contains(joined, "burst") {
		nudges = append(nudges, Nudge{
			Title:      "Cooldown after bursts",
			Message:    "You tend to make several purchases in quick succession. A short pause can help.",
			WhyThis:    "Your burst buying pattern suggests impulse clustering.",
			ActionStep: "Wait 15–30 minutes before a second purchase in the same session.",
			Confidence: 0.85,
		})
	}
	if strings.Contains(joined, "end-of-month") || strings.Contains(joined, "surge") {
		nudges = append(nudges, Nudge{
			Title:      "End-of-month cap",
			Message:    "Spending often rises in the last days of the month.",
			WhyThis:    "Your end-of-month surge ratio is elevated.",
			ActionStep: "Set a weekly discretionary cap in the last week of the month.",
			Confidence: 0.8,
		})
	}
	if strings.Contains(joined, "timing") || strings.Contains(joined, "late-night") {
		nudges = append(nudges, Nudge{
			Title:      "Sleep-mode spending",
			Message:    "Late-night transactions can be more impulsive.",
			WhyThis:    "A notable share of your transactions occur late at night.",
			ActionStep: "Avoid making non-essential purchases between 22:00 and 05:00.",
			Confidence: 0.8,
		})
	}
	if strings.Contains(joined, "category") || strings.Contains(joined, "concentration") {
		nudges = append(nudges, Nudge{
			Title:      "Category budget",
			Message:    "Spending is concentrated in few categories.",
			WhyThis:    "High category concentration can reflect habit-driven spending.",
			ActionStep: "Set a monthly limit for your top 1–2 categories.",
			Confidence: 0.75,
		})
	}
	if band == scoring.BandHigh || band == scoring.BandCritical {
		nudges = append(nudges, Nudge{
			Title:      "Review spending patterns",
			Message:    "Several impulse indicators are elevated. Small changes can help.",
			WhyThis:    "Your impulse risk band is " + string(band) + ".",
			ActionStep: "Review one behavioural driver per week and pick one action to try.",
			Confidence: 0.9,
		})
	}
	if len(nudges) == 0 {
		nudges = append(nudges, Nudge{
			Title:      "Stay aware",
			Message:    "Awareness of when and how you spend helps reduce impulse.",
			WhyThis:    "General best practice for spending behaviour.",
			ActionStep: "Check your transaction history once a week.",
			Confidence: 0.7,
		})
	}
	if len(nudges) > 5 {
		nudges = nudges[:5]
	}
	return nudges
}
