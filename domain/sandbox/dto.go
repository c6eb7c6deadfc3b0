package sandbox

// ExecuteRequest is the body for synchronous execution. ExerciseID is
// optional: without it the run is free-form and unscored.
type ExecuteRequest struct {
	Code       string `json:"code"`
	ExerciseID string `json:"exercise_id,omitempty"`
	HintsUsed  int    `json:"hints_used,omitempty"`
}

// SubmitAsyncRequest is the body for deferred submissions. An exercise is
// required since the result is only observable through the job record.
type SubmitAsyncRequest struct {
	Code       string `json:"code"`
	ExerciseID string `json:"exercise_id"`
	HintsUsed  int    `json:"hints_used,omitempty"`
}

// CreateSessionResponse wraps the session returned by create
type CreateSessionResponse struct {
	Session SessionDTO `json:"session"`
	Reused  bool       `json:"reused"`
}

// DestroyResponse acknowledges a teardown
type DestroyResponse struct {
	Status string `json:"status"`
}

// EnqueueResponse returns the handle for a deferred submission
type EnqueueResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}
