package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Frequency defines how often an obligation recurs.
type Frequency string

const (
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyAnnual    Frequency = "annual"
)

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyMonthly, FrequencyQuarterly, FrequencyAnnual:
		return true
	}
	return false
}

// JSONMap is the obligation's free-form extra payload. Its shape is defined
// per obligation, so it stays an opaque key-value map end to end.
type JSONMap map[string]any

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func (m *JSONMap) Scan(src any) error {
	if src == nil {
		*m = nil
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for JSONMap", src)
	}
	if len(raw) == 0 {
		*m = nil
		return nil
	}
	return json.Unmarshal(raw, m)
}

// Obligation is a recurring duty template owned by a tenant group.
// LastCompetence is the watermark: the latest competency period the
// materializer has already covered. Only the materializer writes it.
type Obligation struct {
	ID              int64      `json:"id"`
	GroupID         int64      `json:"group_id"`
	Title           string     `json:"title"`
	Frequency       Frequency  `json:"frequency"`
	DayDeadline     int        `json:"day_deadline"`
	MonthDeadline   *int       `json:"month_deadline,omitempty"` // annual only
	InitialDate     time.Time  `json:"initial_date"`
	FinalDate       *time.Time `json:"final_date,omitempty"`
	MonthsAdvanced  int        `json:"months_advanced"`
	AutoGenerate    bool       `json:"auto_generate"`
	ShowInDashboard bool       `json:"show_in_dashboard"`
	LastCompetence  *time.Time `json:"last_competence,omitempty"`
	Version         int        `json:"version"`
	ExtraFields     JSONMap    `json:"extra_fields,omitempty"`
	Deleted         bool       `json:"-"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// ObligationCompany binds an obligation to one company, with the user
// responsible for its tasks at that company.
type ObligationCompany struct {
	ObligationID      int64  `json:"obligation_id"`
	CompanyID         int64  `json:"company_id"`
	ResponsibleUserID *int64 `json:"responsible_user_id,omitempty"`
}
