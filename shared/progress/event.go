// Package progress carries pipeline progress from the orchestrator to a
// client: a bounded in-process stream on the server side and the
// newline-delimited "data: <json>" framing on the wire.
package progress

// Step names a stage of an analysis run.
type Step string

const (
	StepValidate           Step = "validate"
	StepFetchInfo          Step = "fetch-info"
	StepFetchTranscript    Step = "fetch-transcript"
	StepAnalyze            Step = "analyze"
	StepGenerateThumbnails Step = "generate-thumbnails"
	StepSave               Step = "save"
	StepComplete           Step = "complete"
	StepError              Step = "error"
)

var percentages = map[Step]int{
	StepValidate:           10,
	StepFetchInfo:          20,
	StepFetchTranscript:    30,
	StepAnalyze:            60,
	StepGenerateThumbnails: 80,
	StepSave:               90,
	StepComplete:           100,
}

// Percent is the advisory completion percentage shown for a step. The error
// step has none.
func (s Step) Percent() int {
	return percentages[s]
}

// Terminal reports whether no event may follow s.
func (s Step) Terminal() bool {
	return s == StepComplete || s == StepError
}

// Event is one record on the progress stream.
type Event struct {
	Step     Step   `json:"step"`
	Message  string `json:"message"`
	Progress int    `json:"progress,omitempty"`
	Data     any    `json:"data,omitempty"`
}
