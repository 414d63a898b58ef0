package calendar

import (
	"fmt"
	"time"

	"taxtrack/internal/models"
)

// TaskTitle builds "<title><suffix>" where the suffix names the competency
// (" 12/2024", " Q4/2024" or " 2024") and the title, never the suffix, is
// hard-truncated so the whole string fits the persisted 30-char column.
// The cut is on rune boundaries; a multi-byte title never ends mid-rune.
func TaskTitle(title string, freq models.Frequency, competence time.Time) string {
	suffix := competenceSuffix(freq, competence)
	maxTitle := models.MaxTaskTitleLen - len(suffix)
	if maxTitle < 0 {
		maxTitle = 0
	}
	if runes := []rune(title); len(runes) > maxTitle {
		title = string(runes[:maxTitle])
	}
	return title + suffix
}

func competenceSuffix(freq models.Frequency, competence time.Time) string {
	switch freq {
	case models.FrequencyMonthly:
		return fmt.Sprintf(" %02d/%d", int(competence.Month()), competence.Year())
	case models.FrequencyQuarterly:
		quarter := (int(competence.Month()) + 2) / 3
		return fmt.Sprintf(" Q%d/%d", quarter, competence.Year())
	case models.FrequencyAnnual:
		return fmt.Sprintf(" %d", competence.Year())
	}
	return ""
}
