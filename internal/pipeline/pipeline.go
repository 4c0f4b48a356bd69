// Package pipeline runs one curation pass end to end.
// It orchestrates the run stages: read the source batch, apply the
// cleaning rules, evaluate data-quality expectations, write the target.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cleansweep/engine/internal/clean"
	"github.com/cleansweep/engine/internal/config"
	"github.com/cleansweep/engine/internal/dq"
	"github.com/cleansweep/engine/internal/errhandling"
	"github.com/cleansweep/engine/internal/fileio"
	"github.com/cleansweep/engine/internal/hooks"
	"github.com/cleansweep/engine/internal/logger"
	"github.com/cleansweep/engine/pkg/curation"
)

// Stage names used in logs and run errors.
const (
	StageRead    = "read"
	StageClean   = "clean"
	StageQuality = "quality"
	StageWrite   = "write"
)

// Error codes for run errors
const (
	ErrCodeInvalidSettings = "INVALID_SETTINGS"
	ErrCodeReadFailed      = "READ_FAILED"
	ErrCodePluginFailed    = "PLUGIN_FAILED"
	ErrCodeCleanFailed     = "CLEAN_FAILED"
	ErrCodeQualityFailed   = "QUALITY_FAILED"
	ErrCodeWriteFailed     = "WRITE_FAILED"
)

// Run status values
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// ErrNilSettings is returned when the runner is built without settings.
var ErrNilSettings = errors.New("curation settings are nil")

// Options adjusts a single run without touching the settings.
type Options struct {
	// DryRun skips the write stage.
	DryRun bool

	// SourcePath overrides the configured source path or pattern.
	SourcePath string

	// TargetPath overrides the configured output path.
	TargetPath string
}

// Runner executes curation runs for one settings object.
type Runner struct {
	settings *config.Settings
	opts     Options
}

// NewRunner creates a runner for the given settings and per-run options.
func NewRunner(settings *config.Settings, opts Options) *Runner {
	return &Runner{settings: settings, opts: opts}
}

// sourceData holds what the read stage produced: the combined batch,
// the matched source files in read order, and the resolved format.
type sourceData struct {
	batch  *curation.Batch
	files  []string
	format string
}

// stageTimings holds timing measurements for each run stage.
type stageTimings struct {
	read    time.Duration
	clean   time.Duration
	quality time.Duration
	write   time.Duration
}

// Run executes one curation pass with the given context. The context
// cancels between rules, inside expectation evaluation and inside
// script plugins.
//
// Run flow:
//  1. Read the source files into one batch
//  2. Load script plugins, apply the cleaning rules in order
//  3. Evaluate data-quality expectations on the cleaned batch
//  4. Write the target file (skipped on dry-run or an empty batch)
//
// The returned result always carries the run ID and stage outcome, also
// when the run fails; the error then names the failed stage.
func (r *Runner) Run(ctx context.Context) (*curation.RunResult, error) {
	startedAt := time.Now()
	result := &curation.RunResult{
		RunID:     uuid.NewString(),
		Status:    StatusError,
		StartedAt: startedAt,
		DryRun:    r.opts.DryRun,
	}

	if r.settings == nil {
		logger.Error("curation run failed: nil settings")
		result.CompletedAt = time.Now()
		result.Error = buildRunError(ErrCodeInvalidSettings, "", ErrNilSettings)
		return result, ErrNilSettings
	}
	result.Name = r.settings.Name

	runCtx := logger.RunContext{
		RunID:    result.RunID,
		Settings: r.settings.Name,
		DryRun:   r.opts.DryRun,
	}
	logger.LogRunStart(runCtx)
	var timings stageTimings

	// Read the source batch
	source, readDuration, err := r.executeRead(runCtx, result)
	timings.read = readDuration
	if err != nil {
		logger.LogRunEnd(runCtx, StatusError, 0, time.Since(startedAt))
		return result, err
	}
	result.DocumentsRead = source.batch.Len()

	// Apply plugins and rules
	cleaned, cleanDuration, err := r.executeClean(ctx, runCtx, source.batch, result)
	timings.clean = cleanDuration
	if err != nil {
		logger.LogRunEnd(runCtx, StatusError, 0, time.Since(startedAt))
		return result, err
	}
	result.DocumentsCleaned = cleaned.Len()

	// Evaluate data-quality expectations
	qualityDuration, err := r.executeQuality(ctx, runCtx, cleaned, result)
	timings.quality = qualityDuration
	if err != nil {
		logger.LogRunEnd(runCtx, StatusError, result.DocumentsCleaned, time.Since(startedAt))
		return result, err
	}

	// Write the target file
	writeDuration, err := r.executeWrite(runCtx, cleaned, source, result)
	timings.write = writeDuration
	if err != nil {
		logger.LogRunEnd(runCtx, StatusError, result.DocumentsCleaned, time.Since(startedAt))
		return result, err
	}

	r.finalizeSuccess(result, runCtx, startedAt, timings)
	return result, nil
}

// buildRunError creates a RunError with a classified category.
func buildRunError(code, stage string, err error) *curation.RunError {
	classified := errhandling.ClassifyError(err)
	return &curation.RunError{
		Code:     code,
		Message:  err.Error(),
		Stage:    stage,
		Category: string(classified.Category),
	}
}

// failStage records a stage failure on the result and returns the
// wrapped error the caller propagates.
func failStage(result *curation.RunResult, code, stage string, err error) error {
	result.CompletedAt = time.Now()
	result.Error = buildRunError(code, stage, err)
	return fmt.Errorf("%s stage: %w", stage, err)
}

// executeRead resolves the source format, expands the source pattern
// and reads every matched file into one batch.
func (r *Runner) executeRead(runCtx logger.RunContext, result *curation.RunResult) (*sourceData, time.Duration, error) {
	stageCtx := runCtx
	stageCtx.Stage = StageRead
	logger.LogStageStart(stageCtx)

	start := time.Now()
	pattern := r.settings.Source.Path
	if r.opts.SourcePath != "" {
		pattern = r.opts.SourcePath
	}

	format, err := fileio.ResolveFormat(pattern, r.settings.Source.Format)
	if err != nil {
		duration := time.Since(start)
		logger.LogStageEnd(stageCtx, 0, duration, &logger.RunError{Code: ErrCodeReadFailed, Message: err.Error()})
		return nil, duration, failStage(result, ErrCodeReadFailed, StageRead, err)
	}

	batch, files, err := fileio.ReadSource(pattern, format)
	duration := time.Since(start)
	if err != nil {
		logger.LogStageEnd(stageCtx, 0, duration, &logger.RunError{Code: ErrCodeReadFailed, Message: err.Error()})
		return nil, duration, failStage(result, ErrCodeReadFailed, StageRead, err)
	}

	logger.LogStageEnd(stageCtx, batch.Len(), duration, nil)
	return &sourceData{batch: batch, files: files, format: format}, duration, nil
}

// executeClean loads the configured script plugins and applies the rule
// list. Plugin load failures and rule failures carry distinct codes so
// a bad plugin file is distinguishable from a bad rule.
func (r *Runner) executeClean(ctx context.Context, runCtx logger.RunContext, batch *curation.Batch, result *curation.RunResult) (*curation.Batch, time.Duration, error) {
	stageCtx := runCtx
	stageCtx.Stage = StageClean
	logger.LogStageStart(stageCtx)

	start := time.Now()
	plugins, err := loadPlugins(r.settings.Plugins)
	if err != nil {
		duration := time.Since(start)
		logger.LogStageEnd(stageCtx, batch.Len(), duration, &logger.RunError{Code: ErrCodePluginFailed, Message: err.Error()})
		return nil, duration, failStage(result, ErrCodePluginFailed, StageClean, err)
	}

	cleaner := &clean.Cleaner{DetailedDiff: r.settings.DetailedDiff}
	cleaned, err := cleaner.Clean(ctx, batch, r.settings.Rules, plugins)
	duration := time.Since(start)
	result.RulesApplied = cleaner.RulesApplied()
	if err != nil {
		logger.LogStageEnd(stageCtx, batch.Len(), duration, &logger.RunError{Code: ErrCodeCleanFailed, Message: err.Error()})
		return nil, duration, failStage(result, ErrCodeCleanFailed, StageClean, err)
	}

	logger.LogStageEnd(stageCtx, cleaned.Len(), duration, nil)
	return cleaned, duration, nil
}

// executeQuality evaluates the expectation suite on the cleaned batch.
// The summary lands on the result even when strict mode fails the run.
func (r *Runner) executeQuality(ctx context.Context, runCtx logger.RunContext, batch *curation.Batch, result *curation.RunResult) (time.Duration, error) {
	if !r.settings.DQ.Enabled {
		return 0, nil
	}

	stageCtx := runCtx
	stageCtx.Stage = StageQuality
	logger.LogStageStart(stageCtx)

	start := time.Now()
	report, err := dq.Run(ctx, batch, r.settings.DQ)
	duration := time.Since(start)
	if report != nil {
		result.DQ = report.Summary()
	}
	if err != nil {
		logger.LogStageEnd(stageCtx, batch.Len(), duration, &logger.RunError{Code: ErrCodeQualityFailed, Message: err.Error()})
		return duration, failStage(result, ErrCodeQualityFailed, StageQuality, err)
	}

	logger.LogStageEnd(stageCtx, batch.Len(), duration, nil)
	return duration, nil
}

// executeWrite writes the cleaned batch to the target file. Dry-run
// mode and an empty batch both skip the write; the result then carries
// no output path.
func (r *Runner) executeWrite(runCtx logger.RunContext, batch *curation.Batch, source *sourceData, result *curation.RunResult) (time.Duration, error) {
	stageCtx := runCtx
	stageCtx.Stage = StageWrite

	if r.opts.DryRun {
		logger.WithRunContext(stageCtx).Info("dry-run mode: skipping write stage",
			"documents_would_write", batch.Len())
		return 0, nil
	}
	if batch.IsEmpty() {
		logger.WithRunContext(stageCtx).Warn("no documents to write, skipping write stage")
		return 0, nil
	}

	logger.LogStageStart(stageCtx)

	start := time.Now()
	outputPath := r.settings.Output.Path
	if r.opts.TargetPath != "" {
		outputPath = r.opts.TargetPath
	}
	targetFormat := r.settings.Output.Format
	if targetFormat == "" {
		targetFormat = source.format
	}

	target, err := fileio.TargetPath(outputPath, source.files[0], result.RunID, targetFormat)
	if err != nil {
		duration := time.Since(start)
		logger.LogStageEnd(stageCtx, batch.Len(), duration, &logger.RunError{Code: ErrCodeWriteFailed, Message: err.Error()})
		return duration, failStage(result, ErrCodeWriteFailed, StageWrite, err)
	}

	err = fileio.WriteBatch(batch, target, targetFormat)
	duration := time.Since(start)
	if err != nil {
		logger.LogStageEnd(stageCtx, batch.Len(), duration, &logger.RunError{Code: ErrCodeWriteFailed, Message: err.Error()})
		return duration, failStage(result, ErrCodeWriteFailed, StageWrite, err)
	}

	result.OutputPath = target
	logger.LogStageEnd(stageCtx, batch.Len(), duration, nil)
	return duration, nil
}

// finalizeSuccess marks the run as successful and logs completion with
// detailed metrics.
func (r *Runner) finalizeSuccess(result *curation.RunResult, runCtx logger.RunContext, startedAt time.Time, timings stageTimings) {
	result.Status = StatusSuccess
	result.CompletedAt = time.Now()
	result.Error = nil

	totalDuration := result.CompletedAt.Sub(startedAt)
	removed := result.DocumentsRead - result.DocumentsCleaned
	if removed < 0 {
		removed = 0
	}

	var documentsPerSecond float64
	var avgDocumentTime time.Duration
	if result.DocumentsCleaned > 0 && totalDuration > 0 {
		documentsPerSecond = float64(result.DocumentsCleaned) / totalDuration.Seconds()
		avgDocumentTime = totalDuration / time.Duration(result.DocumentsCleaned)
	}

	logger.LogRunEnd(runCtx, StatusSuccess, result.DocumentsCleaned, totalDuration)
	logger.LogMetrics(runCtx, logger.RunMetrics{
		TotalDuration:      totalDuration,
		ReadDuration:       timings.read,
		CleanDuration:      timings.clean,
		QualityDuration:    timings.quality,
		WriteDuration:      timings.write,
		DocumentsIn:        result.DocumentsRead,
		DocumentsOut:       result.DocumentsCleaned,
		DocumentsRemoved:   removed,
		DocumentsPerSecond: documentsPerSecond,
		AvgDocumentTime:    avgDocumentTime,
	})
}

// loadPlugins compiles the configured script plugins in listed order.
func loadPlugins(paths []string) ([]hooks.Plugin, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	plugins := make([]hooks.Plugin, 0, len(paths))
	for _, path := range paths {
		p, err := hooks.LoadScriptPlugin(path)
		if err != nil {
			return nil, err
		}
		plugins = append(plugins, p)
	}
	return plugins, nil
}
