package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pavelanni/autograder/internal/grading"
	"github.com/pavelanni/autograder/internal/model"
	"github.com/pavelanni/autograder/internal/store"
)

func gradeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grade <submission.json>",
		Short: "Grade one submission file and print the result",
		Args:  cobra.ExactArgs(1),
		RunE:  runGrade,
	}
	f := cmd.Flags()
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.String("db", "", "SQLite database path to save the result in (empty = don't save)")
	addGradingFlags(f)
	addLoggingFlags(f)
	return cmd
}

func batchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch <submission.json>...",
		Short: "Grade many submission files concurrently and store the results",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runBatch,
	}
	f := cmd.Flags()
	f.String("db", "autograder.db", "SQLite database path")
	f.IntP("concurrency", "c", 4, "Maximum submissions graded at once")
	addGradingFlags(f)
	addLoggingFlags(f)
	return cmd
}

// readSubmission loads a submission file and returns it with the file's
// content hash.
func readSubmission(path string) (model.Submission, string, error) {
	var sub model.Submission
	data, err := os.ReadFile(path)
	if err != nil {
		return sub, "", fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &sub); err != nil {
		return sub, "", fmt.Errorf("parse %s: %w", path, err)
	}
	return sub, sha256sum(data), nil
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

func logProgress(path string) grading.ProgressFunc {
	return func(stage grading.Stage, label string) {
		slog.Info(label, "file", path, "stage", stage)
	}
}

func runGrade(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	engine, info, err := buildEngine(v)
	if err != nil {
		return err
	}

	path := args[0]
	sub, _, err := readSubmission(path)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	resp, err := engine.Grade(ctx, sub.Questions, sub.Answers, logProgress(path))
	if err != nil {
		return fmt.Errorf("grade %s: %w", path, err)
	}
	resp.ID = sub.ID
	if resp.ID == "" {
		resp.ID = uuid.NewString()
	}

	if dbPath := v.GetString("db"); dbPath != "" {
		db, err := store.New(dbPath)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()
		if err := db.SetRunInfo(info); err != nil {
			return fmt.Errorf("record run info: %w", err)
		}
		if err := db.SaveResponse(*resp); err != nil {
			return fmt.Errorf("save response: %w", err)
		}
		slog.Info("saved response", "id", resp.ID, "db", dbPath)
	}

	return writeJSON(v.GetString("output"), resp)
}

func runBatch(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	engine, info, err := buildEngine(v)
	if err != nil {
		return err
	}
	if err := db.SetRunInfo(info); err != nil {
		return fmt.Errorf("record run info: %w", err)
	}

	concurrency := v.GetInt("concurrency")
	if concurrency < 1 {
		concurrency = 1
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	var graded, skipped, failed atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, path := range args {
		g.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			ok, err := gradeFile(ctx, engine, db, path)
			switch {
			case err != nil:
				failed.Add(1)
				slog.Error("failed to grade submission", "file", path, "error", err)
			case ok:
				graded.Add(1)
			default:
				skipped.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("batch complete",
		"graded", graded.Load(),
		"skipped", skipped.Load(),
		"failed", failed.Load(),
	)
	if n := failed.Load(); n > 0 {
		return fmt.Errorf("%d of %d submissions failed", n, len(args))
	}
	return nil
}

// gradeFile grades one submission file and stores the response. It reports
// false when the file is unchanged since it was last graded.
func gradeFile(ctx context.Context, engine *grading.Engine, db *store.Store, path string) (bool, error) {
	sub, hash, err := readSubmission(path)
	if err != nil {
		return false, err
	}

	storedHash, err := db.GetGradedFileHash(path)
	if err != nil {
		return false, fmt.Errorf("check graded status: %w", err)
	}
	if storedHash == hash {
		slog.Info("submission unchanged, skipping", "file", path)
		return false, nil
	}

	resp, err := engine.Grade(ctx, sub.Questions, sub.Answers, logProgress(path))
	if err != nil {
		return false, err
	}
	resp.ID = sub.ID
	if resp.ID == "" {
		resp.ID = uuid.NewString()
	}

	if err := db.SaveResponse(*resp); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return false, fmt.Errorf("submission %s was already graded from different content: %w", resp.ID, err)
		}
		return false, fmt.Errorf("save response: %w", err)
	}
	if err := db.SetGradedFileHash(path, hash, resp.ID); err != nil {
		return false, fmt.Errorf("record graded file: %w", err)
	}

	slog.Info("graded submission",
		"file", path,
		"id", resp.ID,
		"score", resp.TotalScore,
		"max", resp.MaxScore,
		"percentage", resp.Percentage,
	)
	return true, nil
}
