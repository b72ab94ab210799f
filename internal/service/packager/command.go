package packager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/oshokin/wp-release/internal/config"
	"github.com/oshokin/wp-release/internal/domain/release"
	"github.com/oshokin/wp-release/internal/logger"
	"github.com/oshokin/wp-release/internal/repository/artifact"
)

// Options contains inputs for the packager entry point.
type Options struct {
	// Config holds the validated build settings. Nil means config.Default().
	Config *config.Config
	// Format selects the console report, FormatText or FormatJSON.
	Format string
	// Stdout receives the report. Nil means os.Stdout.
	Stdout io.Writer
	// NoColor disables colors in the text report.
	NoColor bool
	// Runner executes the installer. Nil means ExecRunner.
	Runner CommandRunner
	// Publisher uploads the archive when publishing is configured. Nil means an S3 store.
	Publisher Publisher
}

// Publisher uploads a produced archive and returns its location.
type Publisher interface {
	Publish(ctx context.Context, key, filePath string, metadata map[string]string) (string, error)
}

// packager holds the state of a single run.
// It is unexported; callers use Run, which encapsulates setup and validation.
type packager struct {
	cfg         *config.Config
	runID       string
	runner      CommandRunner
	publisher   Publisher
	reporter    Reporter
	metrics     *buildMetrics
	actor       Actor
	plugin      release.PluginMetadata
	stagingPath string
}

// Run executes the packaging workflow and reports its outcome on opts.Stdout.
// Any returned error is fatal and has already been reported.
func Run(ctx context.Context, opts *Options) (*Result, error) {
	if opts == nil {
		opts = new(Options)
	}

	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	reporter := NewReporter(opts.Format, stdout, opts.NoColor)

	p, err := newPackager(opts, reporter)
	if err != nil {
		reporter.Fail("", err)
		return nil, err
	}

	ctx = logger.WithName(ctx, "packager")
	ctx = logger.WithKV(ctx, "run_id", p.runID, "slug", p.cfg.Slug)

	result, err := p.run(ctx)

	p.metrics.observeResult(result, time.Now())
	p.writeMetrics(ctx)

	if err != nil {
		logger.ErrorKV(ctx, "Packaging failed", "step", FailedStep(err), "error", err)
		reporter.Fail(p.runID, err)

		return nil, err
	}

	logger.InfoKV(ctx, "Packaging completed", "path", result.Artifact.Path, "size_bytes", result.Artifact.SizeBytes)
	reporter.Complete(result)

	return result, nil
}

// newPackager validates the settings and wires the collaborators of a run.
func newPackager(opts *Options, reporter Reporter) (*packager, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}

	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("initialize packager: %w", err)
	}

	runner := opts.Runner
	if runner == nil {
		runner = ExecRunner{}
	}

	// The actor only annotates published archives, so a lookup failure is tolerated.
	actor, _ := DetectActor() //nolint:errcheck // Zero value means unknown.

	return &packager{
		cfg:       cfg,
		actor:     actor,
		runID:     uuid.NewString(),
		runner:    runner,
		publisher: opts.Publisher,
		reporter:  reporter,
		metrics:   newBuildMetrics(cfg.Slug),
	}, nil
}

// run executes the pipeline in order. Every step depends on the filesystem
// state left by the previous one, so nothing is retried or parallelized.
func (p *packager) run(ctx context.Context) (result *Result, err error) {
	warnConcurrentRuns(ctx)

	if p.actor.Username != "" {
		logger.DebugKV(ctx, "Building as", "actor", p.actor.String())
	}

	if err = p.discover(ctx); err != nil {
		return nil, err
	}

	p.reporter.Start(p.plugin)

	defer func() {
		if err != nil {
			p.abort(ctx)
		}
	}()

	buildRoot := p.cfg.BuildDir

	err = p.step(ctx, StepPrepare, func() error {
		if err := checkBuildRoot(p.cfg.SourceDir, buildRoot); err != nil {
			return err
		}

		stagingPath, err := PrepareOutputDirectories(buildRoot, p.plugin.Slug)
		p.stagingPath = stagingPath

		return err
	})
	if err != nil {
		return nil, err
	}

	err = p.step(ctx, StepStage, func() error {
		return StageSources(ctx, p.cfg.SourceDir, p.stagingPath, p.cfg.Excludes)
	})
	if err != nil {
		return nil, err
	}

	if err = p.step(ctx, StepInstall, func() error { return p.install(ctx) }); err != nil {
		return nil, err
	}

	err = p.step(ctx, StepPrune, func() error {
		return PruneManifests(p.stagingPath, p.cfg.Manifests)
	})
	if err != nil {
		return nil, err
	}

	var built release.Artifact

	err = p.step(ctx, StepArchive, func() error {
		var err error

		built, err = Archive(ctx, buildRoot, p.plugin.Slug, p.plugin.Version)

		return err
	})
	if err != nil {
		return nil, err
	}

	// Cleanup failures are not fatal: the archive already exists.
	if cleanupErr := p.step(ctx, StepCleanup, func() error { return CleanupStaging(p.stagingPath) }); cleanupErr != nil {
		logger.WarnKV(ctx, "Unable to remove the staging directory", "path", p.stagingPath, "error", cleanupErr)
	}

	result = &Result{
		RunID:    p.runID,
		Plugin:   p.plugin,
		Artifact: built,
	}

	if p.cfg.Publish.Enabled() {
		err = p.step(ctx, StepPublish, func() error {
			location, err := p.publish(ctx, built)
			result.Location = location

			return err
		})
		if err != nil {
			logger.WarnKV(ctx, "The archive was built but not published", "path", built.Path)
			return nil, err
		}
	}

	return result, nil
}

// discover resolves the plugin metadata. A missing version header is not fatal.
func (p *packager) discover(ctx context.Context) error {
	header, err := ReadHeader(p.cfg.SourceDir, p.cfg.HeaderGlob)

	switch {
	case errors.Is(err, ErrVersionNotFound):
		logger.WarnKV(ctx, "No plugin header with a version found, using the default",
			"glob", p.cfg.HeaderGlob, "version", header.Version)
	case err != nil:
		return &StepError{Step: StepDiscover, Err: err}
	default:
		logger.InfoKV(ctx, "Discovered plugin header", "file", header.File, "version", header.Version)
	}

	if !release.IsSemantic(header.Version) {
		logger.WarnKV(ctx, "Plugin version is not a semantic version", "version", header.Version)
	}

	name := p.cfg.Name
	if name == "" {
		name = header.Name
	}

	if name == "" {
		name = p.cfg.Slug
	}

	p.plugin = release.PluginMetadata{
		Slug:        p.cfg.Slug,
		DisplayName: name,
		Version:     header.Version,
	}
	p.metrics.observePlugin(p.plugin)

	return nil
}

// install seeds the manifests and runs the dependency manager in the staging directory.
func (p *packager) install(ctx context.Context) error {
	if p.cfg.Installer.Skip {
		logger.Info(ctx, "Dependency installation is disabled")
		return nil
	}

	found, err := SeedManifests(p.cfg.SourceDir, p.stagingPath, p.cfg.Manifests)
	if err != nil {
		return err
	}

	if !found {
		logger.WarnKV(ctx, "No dependency manifest in the source tree, skipping installation",
			"manifest", p.cfg.Manifests[0])

		return nil
	}

	return InstallProductionDependencies(ctx, p.runner, p.cfg.Installer.Command, p.stagingPath)
}

// publish uploads the archive under the configured prefix.
func (p *packager) publish(ctx context.Context, built release.Artifact) (string, error) {
	publisher := p.publisher
	if publisher == nil {
		store, err := artifact.NewS3Store(ctx, artifact.Config{
			Bucket:    p.cfg.Publish.Bucket,
			Region:    p.cfg.Publish.Region,
			Endpoint:  p.cfg.Publish.Endpoint,
			PathStyle: p.cfg.Publish.PathStyle,
		})
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrPublish, err)
		}

		publisher = store
	}

	key := path.Join(p.cfg.Publish.Prefix, filepath.Base(built.Path))
	metadata := map[string]string{
		"slug":    p.plugin.Slug,
		"version": p.plugin.Version,
		"sha512":  built.Checksum,
		"run-id":  p.runID,
	}

	if p.actor.Username != "" {
		metadata["built-by"] = p.actor.String()
	}

	location, err := publisher.Publish(ctx, key, built.Path, metadata)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrPublish, err)
	}

	return location, nil
}

// step reports, times and logs fn, attributing its error to step.
func (p *packager) step(ctx context.Context, step Step, fn func() error) error {
	p.reporter.Step(step)
	logger.DebugKV(ctx, "Starting step", "step", step)

	started := time.Now()
	err := fn()
	elapsed := time.Since(started)

	p.metrics.observeStep(step, elapsed)

	if err != nil {
		return &StepError{Step: step, Err: err}
	}

	logger.DebugKV(ctx, "Finished step", "step", step, "elapsed", elapsed)

	return nil
}

// abort removes the staging directory of a failed run; a partial tree is never archived.
func (p *packager) abort(ctx context.Context) {
	if p.stagingPath == "" {
		return
	}

	if err := os.RemoveAll(p.stagingPath); err != nil {
		logger.WarnKV(ctx, "Unable to remove the staging directory", "path", p.stagingPath, "error", err)
	}
}

// writeMetrics writes the metrics textfile when one is configured.
func (p *packager) writeMetrics(ctx context.Context) {
	if p.cfg.MetricsFile == "" {
		return
	}

	if err := p.metrics.writeTextfile(p.cfg.MetricsFile); err != nil {
		logger.WarnKV(ctx, "Unable to write metrics", "path", p.cfg.MetricsFile, "error", err)
	}
}
