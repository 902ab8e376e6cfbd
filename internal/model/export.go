package model

import "time"

// RunInfo records the grading configuration responses were produced with.
type RunInfo struct {
	PromptVariant   string   `json:"prompt_variant"`
	FillBlankPolicy string   `json:"fill_blank_policy"`
	Lang            string   `json:"lang"`
	Models          []string `json:"models"`
}

// ResultsExport is the top-level JSON structure for result export.
type ResultsExport struct {
	RunInfo
	ExportedAt     time.Time         `json:"exported_at"`
	Count          int               `json:"count"`
	TotalScore     float64           `json:"total_score"`
	MaxScore       int               `json:"max_score"`
	MeanPercentage float64           `json:"mean_percentage"`
	Responses      []GradingResponse `json:"responses"`
}
