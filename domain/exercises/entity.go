package exercises

import (
	"time"

	"github.com/uptrace/bun"
)

// Exercise represents a playbook exercise from the content catalog
type Exercise struct {
	bun.BaseModel `bun:"table:exercises,alias:ex"`

	ID               string     `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	Slug             string     `bun:"slug"`
	Title            string     `bun:"title"`
	Description      string     `bun:"description"`
	Points           int        `bun:"points"`
	TimeLimitSeconds int        `bun:"time_limit_seconds"`
	MaxAttempts      int        `bun:"max_attempts"`
	StarterCode      string     `bun:"starter_code"`
	SolutionCode     string     `bun:"solution_code"`
	TestCases        []TestCase `bun:"test_cases,type:jsonb"`
	IsPublished      bool       `bun:"is_published"`
	CreatedAt        time.Time  `bun:"created_at"`
	UpdatedAt        time.Time  `bun:"updated_at"`
}

// TestCase is one declarative check evaluated against an execution's output.
// Type selects the check; the remaining fields are type-specific parameters.
type TestCase struct {
	Type     string `json:"type"`
	Name     string `json:"name,omitempty"`
	Expected string `json:"expected,omitempty"`
	ExitCode *int   `json:"exit_code,omitempty"`
}

// Hint is an optional nudge attached to an exercise. Using one costs points.
type Hint struct {
	bun.BaseModel `bun:"table:hints,alias:h"`

	ID            string    `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	ExerciseID    string    `bun:"exercise_id,type:uuid"`
	Ord           int       `bun:"ord"`
	Content       string    `bun:"content"`
	PointsPenalty int       `bun:"points_penalty"`
	CreatedAt     time.Time `bun:"created_at"`
}

// ExerciseDTO is the response shape for exercise endpoints.
// Solution code is deliberately absent; it never leaves the catalog.
type ExerciseDTO struct {
	ID               string `json:"id"`
	Slug             string `json:"slug"`
	Title            string `json:"title"`
	Description      string `json:"description"`
	Points           int    `json:"points"`
	TimeLimitSeconds int    `json:"timeLimitSeconds"`
	MaxAttempts      int    `json:"maxAttempts"`
	StarterCode      string `json:"starterCode"`
	TestCount        int    `json:"testCount"`
}

// HintDTO is the response shape for hint endpoints
type HintDTO struct {
	ID            string `json:"id"`
	Ord           int    `json:"ord"`
	Content       string `json:"content"`
	PointsPenalty int    `json:"pointsPenalty"`
}

// ToDTO converts an Exercise to its response shape
func (e *Exercise) ToDTO() ExerciseDTO {
	return ExerciseDTO{
		ID:               e.ID,
		Slug:             e.Slug,
		Title:            e.Title,
		Description:      e.Description,
		Points:           e.Points,
		TimeLimitSeconds: e.TimeLimitSeconds,
		MaxAttempts:      e.MaxAttempts,
		StarterCode:      e.StarterCode,
		TestCount:        len(e.TestCases),
	}
}

// ToDTO converts a Hint to its response shape
func (h *Hint) ToDTO() HintDTO {
	return HintDTO{
		ID:            h.ID,
		Ord:           h.Ord,
		Content:       h.Content,
		PointsPenalty: h.PointsPenalty,
	}
}
