package models

import "time"

// TaskStatus defines the possible statuses for a task.
// Time drives new → pending → late (forward only); finished and rectified
// are terminal.
type TaskStatus string

const (
	StatusNew       TaskStatus = "new"
	StatusPending   TaskStatus = "pending"
	StatusLate      TaskStatus = "late"
	StatusFinished  TaskStatus = "finished"
	StatusRectified TaskStatus = "rectified"
)

// MaxTaskTitleLen is the persisted column bound for task titles.
const MaxTaskTitleLen = 30

// Task is one materialized occurrence of an obligation for one company in
// one competency period. Competence is the first day of the period.
type Task struct {
	ID                int64      `json:"id"`
	ObligationID      *int64     `json:"obligation_id,omitempty"`
	ObligationVersion int        `json:"obligation_version"`
	CompanyID         int64      `json:"company_id"`
	GroupID           int64      `json:"group_id"`
	ResponsibleID     *int64     `json:"responsible_id,omitempty"`
	Title             string     `json:"title"`
	Competence        time.Time  `json:"competence"`
	Deadline          time.Time  `json:"deadline"`
	Status            TaskStatus `json:"status"`
	CompletionPct     int        `json:"completion_pct"`
	DaysDelayed       int        `json:"days_delayed"`
	CorrectedFromID   *int64     `json:"corrected_from_id,omitempty"`
	ConclusionDate    *time.Time `json:"conclusion_date,omitempty"`
	ExtraFields       JSONMap    `json:"extra_fields,omitempty"`
	Archived          bool       `json:"archived"`
	Deleted           bool       `json:"-"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// TaskFilter defines the available parameters for filtering tasks.
type TaskFilter struct {
	CompanyID     *int64
	ObligationID  *int64
	ResponsibleID *int64
	Status        *TaskStatus
	Archived      *bool
}
