package attempts

import (
	"encoding/json"
	"time"

	"github.com/uptrace/bun"
)

// Attempt is one immutable submission record. Rows are append-only; the
// (user, exercise, attempt_number) triple is unique and dense from 1.
type Attempt struct {
	bun.BaseModel `bun:"table:exercise_attempts,alias:at"`

	ID                   string          `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	UserID               string          `bun:"user_id"`
	ExerciseID           string          `bun:"exercise_id,type:uuid"`
	Code                 string          `bun:"code"`
	Stdout               string          `bun:"stdout"`
	Stderr               string          `bun:"stderr"`
	TestResults          json.RawMessage `bun:"test_results,type:jsonb"`
	IsPassed             bool            `bun:"is_passed"`
	ExecutionTimeSeconds *float64        `bun:"execution_time_seconds"`
	HintsUsed            int             `bun:"hints_used"`
	AttemptNumber        int             `bun:"attempt_number"`
	CreatedAt            time.Time       `bun:"created_at,default:now()"`
}

// AttemptDTO is the response shape for attempt history endpoints
type AttemptDTO struct {
	ID                   string          `json:"id"`
	ExerciseID           string          `json:"exerciseId"`
	IsPassed             bool            `json:"isPassed"`
	TestResults          json.RawMessage `json:"testResults"`
	ExecutionTimeSeconds *float64        `json:"executionTimeSeconds,omitempty"`
	HintsUsed            int             `json:"hintsUsed"`
	AttemptNumber        int             `json:"attemptNumber"`
	CreatedAt            time.Time       `json:"createdAt"`
}

// ToDTO converts an Attempt to its response shape. Submitted code and raw
// output are omitted from history listings to keep responses small.
func (a *Attempt) ToDTO() AttemptDTO {
	return AttemptDTO{
		ID:                   a.ID,
		ExerciseID:           a.ExerciseID,
		IsPassed:             a.IsPassed,
		TestResults:          a.TestResults,
		ExecutionTimeSeconds: a.ExecutionTimeSeconds,
		HintsUsed:            a.HintsUsed,
		AttemptNumber:        a.AttemptNumber,
		CreatedAt:            a.CreatedAt,
	}
}
