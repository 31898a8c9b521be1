package customer

import (
	"time"

	"github.com/crm/backend/internal/domain/shared"
)

// Stage is the sales-pipeline state of a customer.
// The values are part of the storage and wire contract.
type Stage string

const (
	StageLead        Stage = "LEAD"
	StageNegotiation Stage = "NEGOCIACAO"
	StageSold        Stage = "VENDIDO"
)

// AllStages lists the recognized stages in pipeline order
func AllStages() []Stage {
	return []Stage{StageLead, StageNegotiation, StageSold}
}

// IsValid reports whether the stage is recognized
func (s Stage) IsValid() bool {
	switch s {
	case StageLead, StageNegotiation, StageSold:
		return true
	}
	return false
}

// String returns the wire value
func (s Stage) String() string {
	return string(s)
}

// ParseStage returns ErrInvalidStage for unrecognized values
func ParseStage(raw string) (Stage, error) {
	s := Stage(raw)
	if !s.IsValid() {
		return "", ErrInvalidStage
	}
	return s, nil
}

const maxNoteLength = 1000

// StageTransition is one append-only history record
type StageTransition struct {
	From Stage     `json:"from"`
	To   Stage     `json:"to"`
	At   time.Time `json:"at"`
	By   string    `json:"by,omitempty"`
	Note string    `json:"note,omitempty"`
}

// CurrentStage is the projection returned by GetCurrentStage
type CurrentStage struct {
	Stage     Stage     `json:"stage"`
	ChangedAt time.Time `json:"changedAt"`
}

// NewStageTransition validates next against current and builds the history record.
// Any stage may move to any other distinct stage.
func NewStageTransition(current, next Stage, by, note string, at time.Time) (StageTransition, error) {
	if !next.IsValid() {
		return StageTransition{}, ErrInvalidStage
	}
	if next == current {
		return StageTransition{}, ErrSameStage
	}
	if len(note) > maxNoteLength {
		return StageTransition{}, shared.NewValidationError("note cannot exceed 1000 characters")
	}
	return StageTransition{
		From: current,
		To:   next,
		At:   at,
		By:   by,
		Note: note,
	}, nil
}
