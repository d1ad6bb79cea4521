package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"

	"mediacompress/internal/config"
	"mediacompress/internal/fileutil"
	"mediacompress/internal/logging"
	"mediacompress/internal/media"
	"mediacompress/internal/media/ffprobe"
	"mediacompress/internal/outcome"
	"mediacompress/internal/services"
	"mediacompress/internal/toolrun"
)

// Cycle is the state shared by every task of one processing cycle.
type Cycle struct {
	ID     string
	Config *config.Config
	// Tools is recreated every cycle.
	Tools  *toolrun.Availability
	Logger *slog.Logger
}

// Executor runs the pipeline for single tasks.
type Executor struct {
	runner   toolrun.Runner
	cycle    Cycle
	logger   *slog.Logger
	newToken func() (string, error)
}

// NewExecutor binds runner to the per-cycle state.
func NewExecutor(runner toolrun.Runner, cycle Cycle) *Executor {
	if cycle.Tools == nil {
		cycle.Tools = toolrun.NewAvailability()
	}
	return &Executor{
		runner: runner,
		cycle:  cycle,
		logger: logging.NewComponentLogger(cycle.Logger, "pipeline"),
		newToken: func() (string, error) {
			id, err := uuid.NewRandom()
			if err != nil {
				return "", err
			}
			return id.String(), nil
		},
	}
}

// Execute processes task to exactly one outcome. Any partial artifact is
// removed before a Failed outcome is returned and the input is left as found.
func (e *Executor) Execute(ctx context.Context, task media.Task) outcome.Outcome {
	ctx = services.WithFile(services.WithCycleID(ctx, e.cycle.ID), task.Name)

	if exists, err := pathExists(task.OutputPath); err != nil {
		return outcome.Failed(outcome.ReasonFinalize, err.Error())
	} else if exists {
		return e.skipExisting(ctx, task)
	}

	switch task.Kind {
	case media.KindVideo:
		return e.processVideo(ctx, task)
	case media.KindImage:
		return e.processImage(ctx, task)
	default:
		return e.passThrough(ctx, task, outcome.StatusSkippedUnsupportedMoved, outcome.StatusSkippedCopied)
	}
}

func (e *Executor) cfg() *config.Config {
	return e.cycle.Config
}

func (e *Executor) skipExisting(ctx context.Context, task media.Task) outcome.Outcome {
	logging.WithContext(ctx, e.logger).Debug("output already exists",
		logging.String("output_path", task.OutputPath),
	)
	return e.retireInput(ctx, task, outcome.Outcome{Status: outcome.StatusSkippedExists})
}

func (e *Executor) processVideo(ctx context.Context, task media.Task) outcome.Outcome {
	logger := logging.WithContext(services.WithStage(ctx, "probe"), e.logger)
	bitrate := ffprobe.ProbeBitrate(ctx, e.runner, e.cycle.Tools, e.cfg().FFprobeBinary(), task.InputPath)
	if bitrate.State == ffprobe.BitrateToolMissing {
		return outcome.Failed(outcome.ToolMissingReason(string(toolrun.FFprobe)), "")
	}
	transcode := ShouldTranscode(bitrate, e.cfg().Video.BitrateKbps)
	logger.Info("video bitrate probed",
		logging.String(logging.FieldEventType, "bitrate_probed"),
		logging.String("bitrate", bitrate.String()),
		logging.Int("target_kbps", e.cfg().Video.BitrateKbps),
		logging.Bool("transcode", transcode),
	)
	if bitrate.Detail != "" {
		logger.Debug("bitrate unavailable", logging.String(logging.FieldReason, bitrate.Detail))
	}
	if !transcode {
		return e.passThrough(ctx, task, outcome.StatusMoved, outcome.StatusCopied)
	}

	art, failed, ok := e.prepare(task)
	if !ok {
		return failed
	}
	encode := videoEncodeStages(e.cfg(), task.InputPath, art)
	post := []Stage{metadataStage(e.cfg(), task.InputPath, art.temp, false)}
	return e.produce(ctx, task, art, encode, post)
}

func (e *Executor) processImage(ctx context.Context, task media.Task) outcome.Outcome {
	if info, err := media.ReadImageInfo(task.InputPath); err == nil {
		attrs := []logging.Attr{
			logging.Int("orientation", info.Orientation),
			logging.Bool("rotated", info.Rotated()),
		}
		if !info.Taken.IsZero() {
			attrs = append(attrs, logging.String("taken", info.Taken.Format("2006-01-02 15:04:05")))
		}
		logging.WithContext(ctx, e.logger).Debug("image exif", logging.Args(attrs...)...)
	}

	art, failed, ok := e.prepare(task)
	if !ok {
		return failed
	}
	encode := []Stage{imageEncodeStage(e.cfg(), task.InputPath, art.temp)}
	post := []Stage{
		metadataStage(e.cfg(), task.InputPath, art.temp, true),
		orientationStage(e.cfg(), art.temp),
	}
	return e.produce(ctx, task, art, encode, post)
}

func (e *Executor) prepare(task media.Task) (artifacts, outcome.Outcome, bool) {
	token, err := e.newToken()
	if err != nil {
		return artifacts{}, outcome.Failed(outcome.ReasonTemporaryOutput, err.Error()), false
	}
	art := newArtifacts(task.OutputPath, token)
	if exists, err := pathExists(art.temp); err != nil || exists {
		detail := "temporary name already in use"
		if err != nil {
			detail = err.Error()
		}
		return artifacts{}, outcome.Failed(outcome.ReasonTemporaryOutput, detail), false
	}
	return art, outcome.Outcome{}, true
}

// produce runs the encode stages into the temp file, sweeps pass logs, runs the
// post-processing stages on the temp file and renames it over the final name.
func (e *Executor) produce(ctx context.Context, task media.Task, art artifacts, encode, post []Stage) outcome.Outcome {
	failed, ok := e.runStages(ctx, encode)
	if err := art.sweepPasslogs(); err != nil {
		e.warnCleanup(ctx, err)
	}
	if ok {
		failed, ok = e.runStages(ctx, post)
	}
	if ok {
		if err := os.Rename(art.temp, task.OutputPath); err != nil {
			failed, ok = outcome.Failed(outcome.ReasonFinalize, err.Error()), false
		}
	}
	if !ok {
		if err := art.cleanup(); err != nil {
			e.warnCleanup(ctx, err)
		}
		return failed
	}
	// exiftool leaves no sidecar on success; this only catches a crashed rewrite.
	if err := removeIfExists(art.temp + exifToolSidecarSuffix); err != nil {
		e.warnCleanup(ctx, err)
	}
	logging.WithContext(ctx, e.logger).Debug("output published",
		logging.String("output_path", task.OutputPath),
	)
	return e.retireInput(ctx, task, outcome.Outcome{Status: outcome.StatusCompleted})
}

// runStages stops at the first failing fatal stage and returns its outcome.
func (e *Executor) runStages(ctx context.Context, stages []Stage) (outcome.Outcome, bool) {
	for _, stage := range stages {
		stageCtx := services.WithStage(ctx, stage.Name)
		logger := logging.WithContext(stageCtx, e.logger)
		logger.Debug("running stage",
			logging.String(logging.FieldTool, string(stage.Tool)),
			logging.String("binary", stage.Binary),
			logging.String("args", strings.Join(stage.Args, " ")),
		)
		res := toolrun.Invoke(stageCtx, e.runner, e.cycle.Tools, stage.Tool, stage.Binary, stage.Args...)
		if res.OK() {
			continue
		}
		if res.Missing() {
			return outcome.Failed(outcome.ToolMissingReason(string(stage.Tool)), ""), false
		}
		attrs := []logging.Attr{
			logging.String(logging.FieldTool, string(stage.Tool)),
			logging.Int("exit_code", res.ExitCode),
			logging.Error(res.Err),
			logging.String(logging.FieldErrorHint, services.Hint(res.Err)),
		}
		if res.StderrTail != "" {
			attrs = append(attrs, logging.String("stderr", res.StderrTail))
		}
		if !stage.Fatal {
			logging.WarnWithContext(logger, stage.Name+" failed", "stage_failed", attrs...)
			continue
		}
		logging.WarnWithContext(logger, stage.Name+" failed", "stage_failed",
			append(attrs, logging.String(logging.FieldImpact, "partial output removed; input retried next cycle"))...)
		return outcome.Failed(stage.Reason, stage.Detail), false
	}
	return outcome.Outcome{}, true
}

// passThrough publishes the input unchanged: moved when originals are deleted,
// copied with its metadata otherwise.
func (e *Executor) passThrough(ctx context.Context, task media.Task, moved, copied outcome.Status) outcome.Outcome {
	if e.cfg().Workflow.DeleteOriginal {
		if err := fileutil.MoveFile(task.InputPath, task.OutputPath); err != nil {
			return moveFailure(err)
		}
		return outcome.Outcome{Status: moved}
	}
	if err := fileutil.CopyPreserving(task.InputPath, task.OutputPath); err != nil {
		return outcome.Failed(outcome.ReasonCopy, err.Error())
	}
	return outcome.Outcome{Status: copied}
}

// moveFailure reports a move whose copy was published but whose source stayed
// behind the same way retireInput does.
func moveFailure(err error) outcome.Outcome {
	if errors.Is(err, fileutil.ErrSourceRetained) {
		return outcome.Failed(outcome.ReasonRemoveOriginal, err.Error())
	}
	return outcome.Failed(outcome.ReasonMove, err.Error())
}

// retireInput removes the input after its output exists when delete_original
// is set. Failing to do so is reported even though the output is valid.
func (e *Executor) retireInput(ctx context.Context, task media.Task, result outcome.Outcome) outcome.Outcome {
	if !e.cfg().Workflow.DeleteOriginal {
		return result
	}
	if err := os.Remove(task.InputPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logging.ErrorWithContext(logging.WithContext(ctx, e.logger), "failed to remove original", "remove_original_failed",
			logging.Error(err),
			logging.String("output_path", task.OutputPath),
			logging.String(logging.FieldErrorHint, "check permissions on the input directory; output and input both exist"),
		)
		return outcome.Failed(outcome.ReasonRemoveOriginal, err.Error())
	}
	return result
}

func (e *Executor) warnCleanup(ctx context.Context, err error) {
	logging.WarnWithContext(logging.WithContext(ctx, e.logger), "failed to remove temporary artifacts", "cleanup_failed",
		logging.Error(err),
		logging.String(logging.FieldImpact, "hidden temporary files may remain in the output directory"),
	)
}

func pathExists(path string) (bool, error) {
	_, err := os.Lstat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("check %s: %w", path, err)
	}
}
