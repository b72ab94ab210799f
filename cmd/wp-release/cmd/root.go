package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/wp-release/internal/config"
	"github.com/oshokin/wp-release/internal/logger"
	"github.com/oshokin/wp-release/internal/service/packager"
	"github.com/oshokin/wp-release/internal/version"
)

var errUnknownOutput = errors.New("unknown output format")

// flags holds the command line values of a single invocation.
type flags struct {
	configPath string
	logLevel   string
	logFormat  string
	output     string
	noColor    bool

	sourceDir   string
	buildDir    string
	slug        string
	name        string
	headerGlob  string
	excludes    []string
	installer   string
	skipInstall bool
	metricsFile string

	publishBucket    string
	publishPrefix    string
	publishRegion    string
	publishEndpoint  string
	publishPathStyle bool
}

// newRootCommand builds the release command with its subcommands, binding the flags to f.
func newRootCommand(f *flags) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "wp-release",
		Short: "Build a distributable zip of a WordPress plugin.",
		Long: `Builds a release archive of the WordPress plugin in the source directory.

The plugin version is read from the Version header of the plugin declaration file.
The sources are copied into build/<slug> without development files, production
Composer dependencies are installed into the copy, the manifests are removed and
the result is compressed into build/<slug>-<version>.zip.
The build directory is deleted and recreated on every run.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if !logger.Configure(f.logLevel, f.logFormat) {
				return fmt.Errorf("unknown log level %q", f.logLevel)
			}

			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return runBuild(ctx, cmd, f)
		},
	}

	persistent := rootCmd.PersistentFlags()
	persistent.StringVarP(&f.configPath, "config", "c", "",
		"path to configuration file (default "+config.DefaultConfigFilename+" if present)")
	persistent.StringVar(&f.logLevel, "log-level", "info", "log level: debug, info, warn or error")
	persistent.StringVar(&f.logFormat, "log-format", logger.FormatConsole, "log format: console or json")

	local := rootCmd.Flags()
	local.StringVarP(&f.output, "output", "o", packager.FormatText, "report format: text or json")
	local.BoolVar(&f.noColor, "no-color", false, "disable colored output")
	local.StringVar(&f.sourceDir, "source", "", "plugin source directory")
	local.StringVar(&f.buildDir, "build-dir", "", "build root, removed and recreated on every run")
	local.StringVar(&f.slug, "slug", "", "plugin slug used for the staging directory and the archive name")
	local.StringVar(&f.name, "name", "", "display name printed in the banner")
	local.StringVar(&f.headerGlob, "header-glob", "", "top-level files scanned for the plugin header")
	local.StringSliceVar(&f.excludes, "exclude", nil, "additional exclusion pattern, may be repeated")
	local.StringVar(&f.installer, "installer", "", `dependency manager command, e.g. "php composer.phar"`)
	local.BoolVar(&f.skipInstall, "skip-install", false, "do not install production dependencies")
	local.StringVar(&f.metricsFile, "metrics-file", "", "write build metrics in the Prometheus text format")
	local.StringVar(&f.publishBucket, "publish-bucket", "", "upload the archive to this S3 bucket")
	local.StringVar(&f.publishPrefix, "publish-prefix", "", "object key prefix of the uploaded archive")
	local.StringVar(&f.publishRegion, "publish-region", "", "S3 region")
	local.StringVar(&f.publishEndpoint, "publish-endpoint", "", "S3-compatible endpoint URL")
	local.BoolVar(&f.publishPathStyle, "publish-path-style", false, "use path-style S3 addressing")

	rootCmd.AddCommand(newInitCommand(f))
	version.AttachCobraVersionCommand(rootCmd)

	return rootCmd
}

// Execute runs the wp-release CLI and exits with non-zero status on error.
func Execute() {
	if err := newRootCommand(new(flags)).ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func runBuild(ctx context.Context, cmd *cobra.Command, f *flags) error {
	format := strings.ToLower(f.output)
	if format != packager.FormatText && format != packager.FormatJSON {
		return fmt.Errorf("%w %q", errUnknownOutput, f.output)
	}

	cfg, err := config.Load(f.configPath)
	if err != nil {
		return err
	}

	applyOverrides(cmd, f, cfg)

	options := &packager.Options{
		Config:  cfg,
		Format:  format,
		Stdout:  cmd.OutOrStdout(),
		NoColor: f.noColor,
	}

	// From here on failures are reported by the packager.
	cmd.Root().SilenceErrors = true

	_, err = packager.Run(ctx, options)

	return err
}

// applyOverrides copies the flags set on the command line over cfg.
func applyOverrides(cmd *cobra.Command, f *flags, cfg *config.Config) {
	changed := cmd.Flags().Changed

	if changed("source") {
		cfg.SourceDir = f.sourceDir
	}

	if changed("build-dir") {
		cfg.BuildDir = f.buildDir
	}

	if changed("slug") {
		cfg.Slug = f.slug
	}

	if changed("name") {
		cfg.Name = f.name
	}

	if changed("header-glob") {
		cfg.HeaderGlob = f.headerGlob
	}

	if changed("exclude") {
		cfg.Excludes = append(cfg.Excludes, f.excludes...)
	}

	if changed("installer") {
		cfg.Installer.Command = f.installer
	}

	if changed("skip-install") {
		cfg.Installer.Skip = f.skipInstall
	}

	if changed("metrics-file") {
		cfg.MetricsFile = f.metricsFile
	}

	if changed("publish-bucket") {
		cfg.Publish.Bucket = f.publishBucket
	}

	if changed("publish-prefix") {
		cfg.Publish.Prefix = f.publishPrefix
	}

	if changed("publish-region") {
		cfg.Publish.Region = f.publishRegion
	}

	if changed("publish-endpoint") {
		cfg.Publish.Endpoint = f.publishEndpoint
	}

	if changed("publish-path-style") {
		cfg.Publish.PathStyle = f.publishPathStyle
	}
}
