package model

import "time"

// SubgroupMetricResult holds the bias metrics of one subgroup.
type SubgroupMetricResult struct {
	Subgroup     string `json:"subgroup" yaml:"subgroup"`
	SubgroupSize int    `json:"subgroup_size" yaml:"subgroup_size"`
	SubgroupAUC  AUC    `json:"subgroup_auc" yaml:"subgroup_auc"`
	BPSNAUC      AUC    `json:"bpsn_auc" yaml:"bpsn_auc"` // background positive, subgroup negative
	BNSPAUC      AUC    `json:"bnsp_auc" yaml:"bnsp_auc"` // background negative, subgroup positive
}

// Summary is the generalized-mean roll-up of a bias table.
type Summary struct {
	Power         float64 `json:"power" yaml:"power"`
	OverallWeight float64 `json:"overall_weight" yaml:"overall_weight"`
	SubgroupMean  AUC     `json:"subgroup_mean" yaml:"subgroup_mean"`
	BPSNMean      AUC     `json:"bpsn_mean" yaml:"bpsn_mean"`
	BNSPMean      AUC     `json:"bnsp_mean" yaml:"bnsp_mean"`
	Final         AUC     `json:"final" yaml:"final"`
}

// Status is the lifecycle state of a report.
type Status string

// Report statuses.
const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Report is a persisted evaluation of one dataset.
type Report struct {
	ID          string                 `json:"id" yaml:"id"`
	RequestID   string                 `json:"request_id,omitempty" yaml:"request_id,omitempty"`
	Status      Status                 `json:"status" yaml:"status"`
	LabelField  string                 `json:"label_field" yaml:"label_field"`
	RecordCount int                    `json:"record_count" yaml:"record_count"`
	OverallAUC  AUC                    `json:"overall_auc" yaml:"overall_auc"`
	Summary     *Summary               `json:"summary,omitempty" yaml:"summary,omitempty"`
	Results     []SubgroupMetricResult `json:"results" yaml:"results"`
	Skipped     []string               `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Error       string                 `json:"error,omitempty" yaml:"error,omitempty"`
	CreatedAt   time.Time              `json:"created_at" yaml:"created_at"`
	CompletedAt *time.Time             `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
}

// EvaluationOptions carries the caller-side policy of an evaluation.
type EvaluationOptions struct {
	MinSubgroupSize int     // subgroups with fewer flagged records are skipped
	SummaryPower    float64 // generalized mean exponent
	OverallWeight   float64 // weight of the overall AUC in the final summary
}

// Job is a queued evaluation.
type Job struct {
	ReportID    string
	RequestID   string
	Dataset     Dataset
	Subgroups   []string // empty means every declared subgroup
	Options     EvaluationOptions
	SubmittedAt time.Time
}
