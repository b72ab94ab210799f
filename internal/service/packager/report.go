package packager

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/oshokin/wp-release/internal/domain/release"
)

// Report formats.
const (
	// FormatText prints the human-readable banner.
	FormatText = "text"
	// FormatJSON prints a single JSON object.
	FormatJSON = "json"
)

// bannerRule frames the banner headings.
const bannerRule = "========================================"

// Result describes a successful run.
type Result struct {
	// RunID identifies the run in logs and metrics.
	RunID string
	// Plugin is the packaged plugin.
	Plugin release.PluginMetadata
	// Artifact is the produced archive.
	Artifact release.Artifact
	// Location is the published object URI, empty when publishing is disabled.
	Location string
}

// Reporter renders the progress and outcome of a run on the console.
type Reporter interface {
	// Start is called once the plugin metadata is known.
	Start(plugin release.PluginMetadata)
	// Step is called before each pipeline step runs.
	Step(step Step)
	// Complete is called after a successful run.
	Complete(result *Result)
	// Fail is called after a fatal error. runID may be empty if the run never started.
	Fail(runID string, err error)
}

// NewReporter returns the reporter for format writing to w.
//
//nolint:ireturn // Callers pick the implementation by format name.
func NewReporter(format string, w io.Writer, noColor bool) Reporter {
	if strings.EqualFold(format, FormatJSON) {
		return &jsonReporter{w: w}
	}

	return newTextReporter(w, noColor)
}

// stepTitles are the progress lines printed before each step.
//
//nolint:gochecknoglobals // Read-only lookup table.
var stepTitles = map[Step]string{
	StepPrepare: "Cleaning old build files...",
	StepStage:   "Copying plugin files...",
	StepInstall: "Installing production dependencies...",
	StepPrune:   "Cleaning Composer files...",
	StepArchive: "Creating ZIP file...",
	StepCleanup: "Cleaning temp files...",
	StepPublish: "Publishing release...",
}

// textReporter prints the colored banner of the release build.
type textReporter struct {
	w     io.Writer
	info  *color.Color
	label *color.Color
	fail  *color.Color
}

func newTextReporter(w io.Writer, noColor bool) *textReporter {
	r := &textReporter{
		w:     w,
		info:  color.New(color.FgBlue),
		label: color.New(color.FgGreen),
		fail:  color.New(color.FgRed),
	}

	if noColor {
		r.info.DisableColor()
		r.label.DisableColor()
		r.fail.DisableColor()
	}

	return r
}

func (r *textReporter) Start(plugin release.PluginMetadata) {
	_, _ = r.info.Fprintln(r.w, bannerRule)
	_, _ = r.info.Fprintln(r.w, "Building release version...")
	_, _ = r.info.Fprintln(r.w, bannerRule)
	r.field("Plugin Name:", plugin.DisplayName)
	r.field("Version:", plugin.Version)
	_, _ = fmt.Fprintln(r.w)
}

func (r *textReporter) Step(step Step) {
	title, ok := stepTitles[step]
	if !ok {
		return
	}

	_, _ = r.info.Fprintln(r.w, title)
}

func (r *textReporter) Complete(result *Result) {
	_, _ = fmt.Fprintln(r.w)
	_, _ = r.label.Fprintln(r.w, bannerRule)
	_, _ = r.label.Fprintln(r.w, "✓ Build complete!")
	_, _ = r.label.Fprintln(r.w, bannerRule)
	r.field("File location:", result.Artifact.Path)
	r.field("File size:", result.Artifact.HumanSize())

	if result.Location != "" {
		r.field("Published to:", result.Location)
	}

	_, _ = fmt.Fprintln(r.w)
}

func (r *textReporter) Fail(_ string, err error) {
	_, _ = fmt.Fprintln(r.w)
	_, _ = r.fail.Fprintln(r.w, bannerRule)

	if step := FailedStep(err); step != "" {
		_, _ = r.fail.Fprintf(r.w, "✗ Build failed at step %q\n", step)
	} else {
		_, _ = r.fail.Fprintln(r.w, "✗ Build failed")
	}

	_, _ = r.fail.Fprintln(r.w, bannerRule)
	_, _ = fmt.Fprintf(r.w, "%s %v\n", r.fail.Sprint("Error:"), err)
}

func (r *textReporter) field(label, value string) {
	_, _ = fmt.Fprintf(r.w, "%s %s\n", r.label.Sprint(label), value)
}

// jsonReporter prints one machine-readable object per run.
type jsonReporter struct {
	w io.Writer
}

type jsonSuccess struct {
	RunID     string `json:"run_id"`
	Slug      string `json:"slug"`
	Name      string `json:"name"`
	Version   string `json:"version"`
	Path      string `json:"path"`
	SizeBytes int64  `json:"size_bytes"`
	Size      string `json:"size"`
	SHA512    string `json:"sha512"`
	Published string `json:"published,omitempty"`
}

type jsonFailure struct {
	RunID string `json:"run_id,omitempty"`
	Step  Step   `json:"step,omitempty"`
	Error string `json:"error"`
}

func (r *jsonReporter) Start(release.PluginMetadata) {}

func (r *jsonReporter) Step(Step) {}

func (r *jsonReporter) Complete(result *Result) {
	r.encode(jsonSuccess{
		RunID:     result.RunID,
		Slug:      result.Plugin.Slug,
		Name:      result.Plugin.DisplayName,
		Version:   result.Plugin.Version,
		Path:      result.Artifact.Path,
		SizeBytes: result.Artifact.SizeBytes,
		Size:      result.Artifact.HumanSize(),
		SHA512:    result.Artifact.Checksum,
		Published: result.Location,
	})
}

func (r *jsonReporter) Fail(runID string, err error) {
	r.encode(jsonFailure{
		RunID: runID,
		Step:  FailedStep(err),
		Error: err.Error(),
	})
}

func (r *jsonReporter) encode(v any) {
	encoder := json.NewEncoder(r.w)
	encoder.SetEscapeHTML(false)

	_ = encoder.Encode(v)
}
