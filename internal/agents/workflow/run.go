package workflow

import (
	"sort"
	"time"

	"quorum/internal/agents"
	"quorum/internal/domain/decision"
	"quorum/internal/domain/fusion"
	"quorum/internal/domain/risk"
)

// Completion statuses.
const (
	StatusComplete = "COMPLETE"
	StatusPartial  = "PARTIAL"
)

// completeThreshold is the number of successful steps a COMPLETE run exceeds.
const completeThreshold = 3

// Contribution notes how a worker took part in a run.
type Contribution string

const (
	ContributionSuccess Contribution = "success"
	ContributionFailed  Contribution = "failed"
	ContributionOmitted Contribution = "omitted"
)

// StepRecord is one attempted stage.
type StepRecord struct {
	Stage  Stage             `json:"stage"`
	Worker string            `json:"worker"`
	Result agents.TaskResult `json:"result"`
}

// Run is one workflow execution. It is not modified after EndedAt is set.
type Run struct {
	ID                  string                   `json:"id"`
	Symbol              string                   `json:"symbol"`
	StartedAt           time.Time                `json:"started_at"`
	EndedAt             time.Time                `json:"ended_at"`
	Steps               []StepRecord             `json:"steps"`
	Composite           *fusion.CompositeScore   `json:"composite,omitempty"`
	FinalRecommendation *decision.Recommendation `json:"final_recommendation,omitempty"`
	Sizing              *risk.SizingResult       `json:"sizing,omitempty"`

	omitted map[Stage]error
}

// Step returns the record for stage, if it was attempted.
func (r *Run) Step(stage Stage) (StepRecord, bool) {
	for _, s := range r.Steps {
		if s.Stage == stage {
			return s, true
		}
	}
	return StepRecord{}, false
}

// Duration is the wall time of the run.
func (r *Run) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}

func (r *Run) omit(stage Stage, reason error) {
	r.omitted[stage] = reason
}

// Summary is the caller-facing digest of a finished run.
type Summary struct {
	RunID              string                  `json:"run_id"`
	Symbol             string                  `json:"symbol"`
	StepsCompleted     int                     `json:"steps_completed"`
	StepsAttempted     int                     `json:"steps_attempted"`
	CompletionFraction float64                 `json:"completion_fraction"`
	Status             string                  `json:"status"`
	Contributions      map[string]Contribution `json:"contributions"`
	Omitted            map[string]string       `json:"omitted,omitempty"`
	AgentsUtilized     []string                `json:"agents_utilized"`
	Duration           time.Duration           `json:"duration"`
	Composite          *fusion.CompositeScore  `json:"composite,omitempty"`
	Recommendation     decision.Recommendation `json:"recommendation"`
	Sizing             *risk.SizingResult      `json:"sizing,omitempty"`
}

func (r *Run) summarize() *Summary {
	s := &Summary{
		RunID:          r.ID,
		Symbol:         r.Symbol,
		StepsAttempted: len(r.Steps),
		Contributions:  make(map[string]Contribution, len(Stages())),
		Duration:       r.Duration(),
		Composite:      r.Composite,
		Sizing:         r.Sizing,
	}
	if r.FinalRecommendation != nil {
		s.Recommendation = *r.FinalRecommendation
	}

	for _, step := range r.Steps {
		if step.Result.OK {
			s.StepsCompleted++
			s.Contributions[step.Worker] = ContributionSuccess
			s.AgentsUtilized = append(s.AgentsUtilized, step.Worker)
		} else {
			s.Contributions[step.Worker] = ContributionFailed
		}
	}

	stages := Stages()
	for stage, reason := range r.omitted {
		worker := stages[stage]
		s.Contributions[worker] = ContributionOmitted
		if s.Omitted == nil {
			s.Omitted = make(map[string]string, len(r.omitted))
		}
		s.Omitted[worker] = reason.Error()
	}
	sort.Strings(s.AgentsUtilized)

	if s.StepsAttempted > 0 {
		s.CompletionFraction = float64(s.StepsCompleted) / float64(s.StepsAttempted)
	}
	s.Status = StatusPartial
	if s.StepsCompleted > completeThreshold {
		s.Status = StatusComplete
	}
	return s
}
