package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kitbuilder587/valyu-go"
)

const MaxQueryLength = 2000

// TaskRecord is the local history entry for a research task. The service is
// the authority on status; Status here is the last one we observed.
type TaskRecord struct {
	ID          string       `json:"id"`
	Owner       string       `json:"owner"`
	Query       string       `json:"query"`
	Mode        valyu.Mode   `json:"mode,omitempty"`
	Status      valyu.Status `json:"status"`
	CostDollars float64      `json:"cost_dollars,omitempty"`
	Error       string       `json:"error,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

func (r *TaskRecord) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return ErrEmptyTaskID
	}
	if strings.TrimSpace(r.Owner) == "" {
		return ErrEmptyOwner
	}
	if strings.TrimSpace(r.Query) == "" {
		return ErrEmptyQuery
	}
	return nil
}

func (r *TaskRecord) IsFinished() bool {
	return r.Status.IsTerminal()
}

// Observe applies a fresh snapshot. It never moves Status backwards.
func (r *TaskRecord) Observe(s *valyu.ResearchStatus, now time.Time) {
	switch {
	case r.Status.IsTerminal(), !s.Status.IsValid():
	case r.Status == valyu.StatusRunning && s.Status == valyu.StatusQueued:
	default:
		r.Status = s.Status
	}
	if s.Usage != nil {
		r.CostDollars = s.Usage.TotalCost
	}
	if s.Error != "" {
		r.Error = s.Error
	}
	r.UpdatedAt = now
}

// ValidateQuery checks chat and quick-search input. Research input has no
// length limit of its own.
func ValidateQuery(q string) error {
	if strings.TrimSpace(q) == "" {
		return ErrEmptyQuery
	}
	if utf8.RuneCountInString(q) > MaxQueryLength {
		return ErrQueryTooLong
	}
	return nil
}

// TelegramOwner is the owner key for tasks started from a chat.
func TelegramOwner(userID int64) string {
	return fmt.Sprintf("tg:%d", userID)
}

// CLIOwner is used for tasks started from the command line.
const CLIOwner = "cli"
