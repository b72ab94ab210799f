package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/wp-release/internal/domain/release"
)

// Config describes how a plugin release is built.
type Config struct {
	// Slug names the staging directory and the archive.
	Slug string `yaml:"slug" validate:"required,slug"`
	// Name is the display name printed in the banner. Empty means the Plugin Name header.
	Name string `yaml:"name,omitempty"`
	// SourceDir is the plugin source tree.
	SourceDir string `yaml:"source_dir" validate:"required"`
	// BuildDir is the build root, removed and recreated on every run.
	BuildDir string `yaml:"build_dir" validate:"required"`
	// HeaderGlob selects the top-level files scanned for the plugin header.
	HeaderGlob string `yaml:"header_glob" validate:"required"`
	// Excludes lists rsync-style patterns never copied into the staging tree.
	Excludes release.ExclusionList `yaml:"excludes"`
	// Manifests are the dependency manifest and lock files removed from the release.
	Manifests []string `yaml:"manifests" validate:"dive,required,excludesall=/\\"`
	// Installer configures the production dependency install.
	Installer Installer `yaml:"installer"`
	// Publish optionally uploads the archive to an S3-compatible bucket.
	Publish Publish `yaml:"publish,omitempty"`
	// MetricsFile optionally receives build metrics in the Prometheus text format.
	MetricsFile string `yaml:"metrics_file,omitempty"`
}

// Installer holds the dependency manager invocation settings.
type Installer struct {
	// Command is the dependency manager, split shell-style, e.g. "php composer.phar".
	Command string `yaml:"command,omitempty"`
	// Skip disables the install step.
	Skip bool `yaml:"skip,omitempty"`
}

// Publish holds the S3 destination of the archive.
type Publish struct {
	// Bucket enables publishing when set.
	Bucket string `yaml:"bucket,omitempty"`
	// Prefix is prepended to the archive name to form the object key.
	Prefix string `yaml:"prefix,omitempty"`
	// Region defaults to us-east-1.
	Region string `yaml:"region,omitempty"`
	// Endpoint overrides the S3 endpoint, e.g. for MinIO.
	Endpoint string `yaml:"endpoint,omitempty" validate:"omitempty,url"`
	// PathStyle forces path-style addressing.
	PathStyle bool `yaml:"path_style,omitempty"`
}

// Enabled reports whether a bucket is configured.
func (p Publish) Enabled() bool {
	return p.Bucket != ""
}

const (
	// DefaultConfigFilename is the configuration looked up in the working directory.
	DefaultConfigFilename = "wp-release.yaml"

	// DefaultSlug is used when neither the file nor the command line sets one.
	DefaultSlug = "unit-testing"

	// DefaultBuildDir is the build root relative to the working directory.
	DefaultBuildDir = "build"

	// DefaultHeaderGlob selects the plugin declaration file candidates.
	DefaultHeaderGlob = "*.php"

	// DefaultInstallerCommand is the Composer executable.
	DefaultInstallerCommand = "composer"

	// DefaultFilePermissions is the file permission for written config files.
	DefaultFilePermissions = 0o644
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")

	// slugPattern allows lowercase words separated by single dashes or underscores.
	slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:[-_][a-z0-9]+)*$`)

	//nolint:gochecknoglobals // Validator caches struct metadata, one instance is enough.
	validate = newValidator()
)

// Default returns the configuration used when no file is present.
// The configuration file itself is excluded so it never ships with the plugin.
func Default() *Config {
	return &Config{
		Slug:       DefaultSlug,
		SourceDir:  ".",
		BuildDir:   DefaultBuildDir,
		HeaderGlob: DefaultHeaderGlob,
		Excludes:   append(release.DefaultExclusions(), "/"+DefaultConfigFilename),
		Manifests:  []string{"composer.json", "composer.lock"},
		Installer: Installer{
			Command: DefaultInstallerCommand,
		},
	}
}

// Load reads configuration from path on top of the defaults.
// A missing file at the default location yields the defaults; a missing explicit file is an error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFilename
	}

	cfg := Default()

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}

		return nil, fmt.Errorf("read settings: %w", err)
	}

	if err = yaml.Unmarshal(contents, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err = Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes cfg to path as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills blank optional fields with defaults and checks the rest.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.SourceDir == "" {
		cfg.SourceDir = "."
	}

	if cfg.HeaderGlob == "" {
		cfg.HeaderGlob = DefaultHeaderGlob
	}

	if cfg.Installer.Command == "" && !cfg.Installer.Skip {
		cfg.Installer.Command = DefaultInstallerCommand
	}

	if err := validate.Struct(cfg); err != nil {
		return newValidationError(err)
	}

	if err := cfg.Excludes.Validate(); err != nil {
		return err
	}

	if _, err := filepath.Match(cfg.HeaderGlob, ""); err != nil {
		return fmt.Errorf("invalid header glob %q: %w", cfg.HeaderGlob, err)
	}

	return nil
}

// SlugFromDirectory derives a slug from the lowercased base name of dir.
// The flag reports whether the result is a valid slug.
func SlugFromDirectory(dir string) (string, bool) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", false
	}

	slug := strings.ToLower(filepath.Base(abs))

	return slug, slugPattern.MatchString(slug)
}

// ValidationError collects field-level validation failures.
type ValidationError struct {
	// Fields maps the YAML field path to a human-readable problem.
	Fields []string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if len(v.Fields) == 0 {
		return "invalid settings"
	}

	return "invalid settings: " + strings.Join(v.Fields, "; ")
}

func newValidationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate settings: %w", err)
	}

	out := &ValidationError{Fields: make([]string, 0, len(fieldErrs))}
	for _, fe := range fieldErrs {
		out.Fields = append(out.Fields, formatFieldError(fe))
	}

	return out
}

func formatFieldError(fe validator.FieldError) string {
	field := fe.Namespace()
	if idx := strings.IndexByte(field, '.'); idx >= 0 {
		field = field[idx+1:]
	}

	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "slug":
		return fmt.Sprintf("%s %q must be lowercase letters and digits separated by dashes", field, fe.Value())
	case "url":
		return fmt.Sprintf("%s %q must be a valid URL", field, fe.Value())
	case "excludesall":
		return fmt.Sprintf("%s %q must be a plain file name", field, fe.Value())
	default:
		return fmt.Sprintf("%s failed %q validation", field, fe.Tag())
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report YAML names instead of Go field names.
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}

		return name
	})

	_ = v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return slugPattern.MatchString(fl.Field().String())
	})

	return v
}
