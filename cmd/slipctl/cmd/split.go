package cmd

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Lllllllleong/labslipflow/internal/archive"
	"github.com/Lllllllleong/labslipflow/internal/document"
	"github.com/Lllllllleong/labslipflow/internal/models"
	"github.com/Lllllllleong/labslipflow/internal/pipeline"
	"github.com/Lllllllleong/labslipflow/internal/render"
	"github.com/Lllllllleong/labslipflow/internal/store"
)

var splitCmd = &cobra.Command{
	Use:   "split",
	Short: "Split a slip document into per-patient docx and pdf files",
	Example: `  slipctl split --input slips.docx --out ./processed
  slipctl split --input slips.docx --out ./processed --zip results.zip`,
	RunE: runSplit,
}

func init() {
	rootCmd.AddCommand(splitCmd)
	splitCmd.Flags().StringP("input", "i", "", "document to split (.docx, .html or .txt)")
	splitCmd.Flags().StringP("out", "o", "processed", "output directory")
	splitCmd.Flags().String("zip", "", "also bundle the output directory into this zip")
	splitCmd.Flags().BoolP("progress", "p", false, "print progress to stderr")
	bindFlags(splitCmd, "split", "input", "out", "zip", "progress")
}

func runSplit(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	input := viper.GetString("split.input")
	outDir := viper.GetString("split.out")
	if input == "" {
		return errors.New("--input is required")
	}

	raw, err := os.ReadFile(input)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", input, err)
	}
	sum := sha256.Sum256(raw)

	mem := store.NewMemory()
	jobID, err := mem.CreateJob(ctx, models.Job{
		FileHash:         hex.EncodeToString(sum[:]),
		OriginalFilename: filepath.Base(input),
	})
	if err != nil {
		return err
	}
	logCtx := slog.With("jobId", jobID, "input", input)

	showProgress := viper.GetBool("split.progress")
	send, stop := pipeline.Latest(func(p pipeline.Progress) {
		if p.Stage != pipeline.StageFailed {
			_ = mem.UpdateProgress(ctx, jobID, p)
		}
		if showProgress {
			fmt.Fprintf(cmd.ErrOrStderr(), "[%s] %d/%d %s\n", p.Stage, p.ProcessedSections, p.TotalSections, p.StatusMessage)
		}
	})
	outcome, err := pipeline.NewProcessor(document.Read, nil, nil).Process(ctx, raw, filepath.Base(input), send)
	stop()
	if err != nil {
		_ = mem.FailJob(ctx, jobID, err.Error())
		logCtx.Error("Processing failed", "error", err)
		return err
	}

	files, err := render.New(nil).RenderAll(ctx, outcome.Records, outDir)
	if err != nil {
		_ = mem.FailJob(ctx, jobID, err.Error())
		return err
	}

	byPosition := make(map[int]pipeline.Record, len(outcome.Records))
	for _, rec := range outcome.Records {
		byPosition[rec.Position] = rec
	}
	out := cmd.OutOrStdout()
	for _, f := range files {
		rec := byPosition[f.Position]
		if _, err := mem.AddResult(ctx, models.Result{
			JobID:      jobID,
			FullName:   rec.FullName,
			Code:       rec.Code,
			Filename:   f.Filename,
			ObjectPath: f.Path,
			Format:     string(f.Format),
			SizeBytes:  f.SizeBytes,
			Position:   f.Position,
		}); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\t%d\t%s\n", f.Format, f.SizeBytes, f.Path)
	}

	if err := mem.CompleteJob(ctx, jobID, pipeline.Progress{
		Stage:             pipeline.StageDone,
		TotalSections:     outcome.TotalSections,
		ProcessedSections: outcome.TotalSections,
		ExtractedCount:    len(outcome.Records),
		ErrorCount:        outcome.ErrorCount,
	}); err != nil {
		return err
	}
	job, err := mem.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "strategy=%s sections=%d extracted=%d errors=%d files=%d\n",
		outcome.Strategy, job.TotalSections, job.ExtractedCount, job.ErrorCount, len(files))

	if zipPath := viper.GetString("split.zip"); zipPath != "" {
		n, err := archive.Directory(outDir, zipPath)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "archived %d files to %s\n", n, zipPath)
	}
	return nil
}
