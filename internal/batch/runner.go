package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/seqlab/rnabatch/internal/checkpoint"
	"github.com/seqlab/rnabatch/internal/config"
	"github.com/seqlab/rnabatch/internal/dataset"
	"github.com/seqlab/rnabatch/internal/features"
	"github.com/seqlab/rnabatch/internal/logging"
)

// Pipeline stage names recorded on failed outcomes.
const (
	StageLoad     = "load"
	StageCompute  = "compute"
	StageValidate = "validate"
	StageWrite    = "write"
)

// Runner executes the extraction pipeline for a single target and reports
// the outcome. Implementations must not panic on bad input; every failure
// mode is captured in the returned outcome so one target can never abort
// a chunk.
type Runner interface {
	Run(ctx context.Context, targetID string, extract config.ExtractConfig) checkpoint.Outcome
}

// TargetLoader resolves a target identifier to its input data.
type TargetLoader interface {
	Load(ctx context.Context, targetID string) (*dataset.TargetInput, error)
}

// FeatureExtractor computes the requested feature families for one target.
type FeatureExtractor interface {
	Extract(ctx context.Context, input *dataset.TargetInput, extract config.ExtractConfig) (*features.FeatureSet, error)
}

// ArtifactValidator checks a computed feature set before it is persisted.
type ArtifactValidator interface {
	Validate(fs *features.FeatureSet) error
}

// ArtifactWriter persists feature sets and reports existing artifacts.
type ArtifactWriter interface {
	Exists(targetID string) (string, bool)
	Write(ctx context.Context, targetID string, fs *features.FeatureSet) (string, error)
}

// PipelineRunner is the production Runner: load input, extract features,
// validate, write the artifact. A target whose artifact already exists on
// disk is not recomputed; it is recorded as skipped_already_done so a
// resumed run converges even when the previous checkpoint was lost after
// the artifact landed.
type PipelineRunner struct {
	loader    TargetLoader
	extractor FeatureExtractor
	validator ArtifactValidator
	writer    ArtifactWriter
}

// NewPipelineRunner wires the pipeline stages together.
func NewPipelineRunner(loader TargetLoader, extractor FeatureExtractor, validator ArtifactValidator, writer ArtifactWriter) *PipelineRunner {
	return &PipelineRunner{
		loader:    loader,
		extractor: extractor,
		validator: validator,
		writer:    writer,
	}
}

// Run executes the pipeline for targetID. It never returns an error; all
// failures are folded into the outcome with the stage that produced them.
func (r *PipelineRunner) Run(ctx context.Context, targetID string, extract config.ExtractConfig) checkpoint.Outcome {
	log := logging.ComponentLogger(logging.FromContext(ctx), "runner")

	if path, ok := r.writer.Exists(targetID); ok {
		log.Debug().Str("target_id", targetID).Str("artifact", path).Msg("artifact already present, skipping")
		return checkpoint.Outcome{
			TargetID:     targetID,
			Status:       checkpoint.StatusSkippedDone,
			ArtifactPath: path,
			RecordedAt:   time.Now().UTC(),
		}
	}

	input, err := r.loader.Load(ctx, targetID)
	if err != nil {
		return failedOutcome(targetID, StageLoad, err)
	}

	fs, err := r.extractor.Extract(ctx, input, extract)
	if err != nil {
		return failedOutcome(targetID, StageCompute, err)
	}

	if err := r.validator.Validate(fs); err != nil {
		return failedOutcome(targetID, StageValidate, err)
	}

	path, err := r.writer.Write(ctx, targetID, fs)
	if err != nil {
		return failedOutcome(targetID, StageWrite, err)
	}

	log.Debug().Str("target_id", targetID).Str("artifact", path).Msg("target succeeded")
	return checkpoint.Outcome{
		TargetID:     targetID,
		Status:       checkpoint.StatusSucceeded,
		ArtifactPath: path,
		RecordedAt:   time.Now().UTC(),
	}
}

func failedOutcome(targetID, stage string, err error) checkpoint.Outcome {
	return checkpoint.Outcome{
		TargetID:    targetID,
		Status:      checkpoint.StatusFailed,
		Stage:       stage,
		ErrorDetail: fmt.Sprintf("%s: %v", stage, err),
		RecordedAt:  time.Now().UTC(),
	}
}
