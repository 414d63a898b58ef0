// Package calendar holds the pure date arithmetic behind obligation
// scheduling: competency enumeration, deadline computation and the bounded
// task title. Nothing here touches storage or the clock.
package calendar

import (
	"fmt"
	"time"

	"taxtrack/internal/models"
)

var ErrInvalidFrequency = fmt.Errorf("invalid obligation frequency")

// DeadlineFor maps a competency period to the date its obligation falls due.
// The day is clamped to the target month's length so Feb 30 can never come
// out of the clamp.
func DeadlineFor(freq models.Frequency, competence time.Time, dayDeadline int, monthDeadline *int) (time.Time, error) {
	year, month := competence.Year(), competence.Month()

	switch freq {
	case models.FrequencyMonthly:
		year, month = addMonths(year, month, 1)
	case models.FrequencyQuarterly:
		year, month = addMonths(year, month, 3)
	case models.FrequencyAnnual:
		year++
		if monthDeadline != nil {
			month = time.Month(*monthDeadline)
		}
	default:
		return time.Time{}, ErrInvalidFrequency
	}

	day := dayDeadline
	if max := daysInMonth(year, month); day > max {
		day = max
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC), nil
}

// CompetenciesInRange enumerates competency period starts from start through
// end inclusive. The walk begins at the first of start's month; quarterly
// emits only January/April/July/October, annual only January firsts.
func CompetenciesInRange(freq models.Frequency, start, end time.Time) ([]time.Time, error) {
	if !freq.Valid() {
		return nil, ErrInvalidFrequency
	}

	var out []time.Time
	cur := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	end = time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)

	for !cur.After(end) {
		switch freq {
		case models.FrequencyMonthly:
			out = append(out, cur)
			cur = cur.AddDate(0, 1, 0)
		case models.FrequencyQuarterly:
			if isQuarterStart(cur.Month()) {
				out = append(out, cur)
			}
			cur = cur.AddDate(0, 1, 0)
		case models.FrequencyAnnual:
			if cur.Month() != time.January {
				cur = time.Date(cur.Year()+1, time.January, 1, 0, 0, 0, 0, time.UTC)
				continue
			}
			out = append(out, cur)
			cur = cur.AddDate(1, 0, 0)
		}
	}
	return out, nil
}

// NextCompetence advances a competency by one period of the given frequency.
// Used to step the generation window off an obligation's watermark.
func NextCompetence(freq models.Frequency, competence time.Time) (time.Time, error) {
	switch freq {
	case models.FrequencyMonthly:
		return competence.AddDate(0, 1, 0), nil
	case models.FrequencyQuarterly:
		return competence.AddDate(0, 3, 0), nil
	case models.FrequencyAnnual:
		return competence.AddDate(1, 0, 0), nil
	}
	return time.Time{}, ErrInvalidFrequency
}

func isQuarterStart(m time.Month) bool {
	return m == time.January || m == time.April || m == time.July || m == time.October
}

func addMonths(year int, month time.Month, n int) (int, time.Month) {
	m := int(month) - 1 + n
	return year + m/12, time.Month(m%12 + 1)
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
