package progress

import (
	"time"

	"github.com/uptrace/bun"
)

// UserProgress tracks accumulated points per user
type UserProgress struct {
	bun.BaseModel `bun:"table:user_progress,alias:up"`

	UserID             string    `bun:"user_id,pk"`
	XP                 int       `bun:"xp"`
	ExercisesCompleted int       `bun:"exercises_completed"`
	UpdatedAt          time.Time `bun:"updated_at"`
}

// ProgressDTO is the response shape for the progress endpoint
type ProgressDTO struct {
	UserID             string `json:"userId"`
	XP                 int    `json:"xp"`
	ExercisesCompleted int    `json:"exercisesCompleted"`
}

// ToDTO converts UserProgress to its response shape
func (p *UserProgress) ToDTO() ProgressDTO {
	return ProgressDTO{
		UserID:             p.UserID,
		XP:                 p.XP,
		ExercisesCompleted: p.ExercisesCompleted,
	}
}
