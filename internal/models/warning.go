package models

// Warning codes attached to otherwise successful results.
const (
	WarningInsufficientCapacity = "INSUFFICIENT_CAPACITY"
	WarningUnseatedStudents     = "UNSEATED_STUDENTS"
)

// Warning is a non-fatal annotation returned alongside a result.
type Warning struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Meta    map[string]interface{} `json:"meta,omitempty"`
}
