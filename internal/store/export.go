package store

import (
	"fmt"
	"time"

	"github.com/pavelanni/autograder/internal/model"
)

// ExportAll builds an export of every stored response with its results.
func (s *Store) ExportAll() (*model.ResultsExport, error) {
	headers, err := s.ListResponses(0, 0)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}

	info, err := s.GetRunInfo()
	if err != nil {
		return nil, fmt.Errorf("get run info: %w", err)
	}

	export := &model.ResultsExport{
		RunInfo:    info,
		ExportedAt: time.Now().UTC(),
		Responses:  []model.GradingResponse{},
	}
	for _, h := range headers {
		resp, err := s.GetResponse(h.ID)
		if err != nil {
			return nil, fmt.Errorf("get response %s: %w", h.ID, err)
		}
		export.Responses = append(export.Responses, *resp)
		export.TotalScore += resp.TotalScore
		export.MaxScore += resp.MaxScore
	}
	export.Count = len(export.Responses)
	if export.Count > 0 {
		export.MeanPercentage = meanPercentage(export.Responses)
	}
	return export, nil
}

func meanPercentage(responses []model.GradingResponse) float64 {
	var sum int
	for _, r := range responses {
		sum += r.Percentage
	}
	return float64(sum) / float64(len(responses))
}
