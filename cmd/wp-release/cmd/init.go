package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/oshokin/wp-release/internal/config"
	"github.com/oshokin/wp-release/internal/logger"
)

var errConfigExists = errors.New("configuration file already exists")

// newInitCommand builds the subcommand writing the default configuration.
func newInitCommand(f *flags) *cobra.Command {
	var force bool

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration file.",
		Long: `Writes the built-in defaults to the configuration file so they can be edited.
The slug defaults to the name of the current directory when it is a valid slug.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := f.configPath
			if path == "" {
				path = config.DefaultConfigFilename
			}

			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%w: %s (use --force to overwrite)", errConfigExists, path)
			} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("check %s: %w", path, err)
			}

			cfg := config.Default()
			if slug, ok := config.SlugFromDirectory("."); ok {
				cfg.Slug = slug
			}

			if err := config.Save(path, cfg); err != nil {
				return err
			}

			logger.InfoKV(cmd.Context(), "Configuration written", "path", path, "slug", cfg.Slug)

			return nil
		},
	}

	initCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing configuration file")

	return initCmd
}
