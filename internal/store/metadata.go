package store

import (
	"database/sql"
	"strings"

	"github.com/pavelanni/autograder/internal/model"
)

// SetMetadata upserts a key-value pair in the grading_metadata table.
func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO grading_metadata (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = ?`,
		key, value, value,
	)
	return err
}

// GetMetadata returns the value for a metadata key.
// Returns empty string and nil error if the key is missing.
func (s *Store) GetMetadata(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM grading_metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SetRunInfo stores the grading configuration in effect as metadata rows.
func (s *Store) SetRunInfo(info model.RunInfo) error {
	pairs := []struct{ k, v string }{
		{"prompt_variant", info.PromptVariant},
		{"fill_blank_policy", info.FillBlankPolicy},
		{"lang", info.Lang},
		{"models", strings.Join(info.Models, ",")},
	}
	for _, p := range pairs {
		if err := s.SetMetadata(p.k, p.v); err != nil {
			return err
		}
	}
	return nil
}

// GetRunInfo reads the recorded grading configuration.
func (s *Store) GetRunInfo() (model.RunInfo, error) {
	var info model.RunInfo
	var err error

	if info.PromptVariant, err = s.GetMetadata("prompt_variant"); err != nil {
		return info, err
	}
	if info.FillBlankPolicy, err = s.GetMetadata("fill_blank_policy"); err != nil {
		return info, err
	}
	if info.Lang, err = s.GetMetadata("lang"); err != nil {
		return info, err
	}
	models, err := s.GetMetadata("models")
	if err != nil {
		return info, err
	}
	if models != "" {
		info.Models = strings.Split(models, ",")
	}
	return info, nil
}
