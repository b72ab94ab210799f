package packager

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	"github.com/mattn/go-shellwords"

	"github.com/oshokin/wp-release/internal/logger"
)

// installArgs request production dependencies, an optimized autoloader and no prompts.
//
//nolint:gochecknoglobals // Read-only argument list.
var installArgs = []string{"install", "--no-dev", "--optimize-autoloader", "--no-interaction"}

// outputTailLines bounds how much installer output is attached to an error.
const outputTailLines = 20

var errEmptyInstaller = errors.New("installer command is empty")

// Command is a subprocess invocation with an explicit argument list.
type Command struct {
	// Name is the program to run.
	Name string
	// Args are passed verbatim, without a shell.
	Args []string
	// Dir is the working directory.
	Dir string
	// Env is appended to the current environment.
	Env []string
}

// String renders the command line for logs.
func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// CommandRunner runs a subprocess to completion and returns its combined output.
type CommandRunner interface {
	Run(ctx context.Context, cmd Command) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run implements CommandRunner. A non-zero exit status is returned as *exec.ExitError.
func (ExecRunner) Run(ctx context.Context, c Command) ([]byte, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = append(os.Environ(), c.Env...)

	return cmd.CombinedOutput()
}

// InstallCommand builds the production install invocation from a shell-style
// installer command line such as "composer" or "php composer.phar".
func InstallCommand(commandLine, stagingPath string) (Command, error) {
	argv, err := shellwords.Parse(commandLine)
	if err != nil {
		return Command{}, fmt.Errorf("parse installer command %q: %w", commandLine, err)
	}

	if len(argv) == 0 {
		return Command{}, errEmptyInstaller
	}

	return Command{
		Name: argv[0],
		Args: slices.Concat(argv[1:], installArgs),
		Dir:  stagingPath,
		Env:  []string{"COMPOSER_NO_INTERACTION=1"},
	}, nil
}

// InstallProductionDependencies runs the dependency manager inside stagingPath.
func InstallProductionDependencies(ctx context.Context, runner CommandRunner, commandLine, stagingPath string) error {
	cmd, err := InstallCommand(commandLine, stagingPath)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDependencyInstall, err)
	}

	logger.DebugKV(ctx, "Running installer", "command", cmd.String(), "dir", cmd.Dir)

	output, err := runner.Run(ctx, cmd)
	if err != nil {
		return fmt.Errorf("%w: %s: %w%s", ErrDependencyInstall, cmd, err, outputTail(output))
	}

	logger.DebugKV(ctx, "Installer finished", "output", string(output))

	return nil
}

// outputTail formats the last lines of subprocess output for an error message.
func outputTail(output []byte) string {
	text := strings.TrimSpace(string(output))
	if text == "" {
		return ""
	}

	lines := strings.Split(text, "\n")
	if len(lines) > outputTailLines {
		lines = lines[len(lines)-outputTailLines:]
	}

	return "\n" + strings.Join(lines, "\n")
}

// SeedManifests copies the dependency manifests present in sourceRoot into
// stagingPath so the installer can resolve them; the exclusion list keeps them
// out of the mirrored copy. It reports whether the primary manifest, the first
// of the list, was found. An empty list always reports true.
func SeedManifests(sourceRoot, stagingPath string, manifests []string) (bool, error) {
	if len(manifests) == 0 {
		return true, nil
	}

	primaryFound := false

	for i, name := range manifests {
		source := filepath.Join(sourceRoot, name)

		info, err := os.Stat(source)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		} else if err != nil {
			return false, fmt.Errorf("%w: stat %s: %w", ErrDependencyInstall, source, err)
		}

		if !info.Mode().IsRegular() {
			continue
		}

		if err = copyFile(source, filepath.Join(stagingPath, name), info); err != nil {
			return false, fmt.Errorf("%w: seed %s: %w", ErrDependencyInstall, name, err)
		}

		if i == 0 {
			primaryFound = true
		}
	}

	return primaryFound, nil
}

// PruneManifests removes the dependency manifests from stagingPath. Missing files are ignored.
func PruneManifests(stagingPath string, manifests []string) error {
	for _, name := range manifests {
		err := os.Remove(filepath.Join(stagingPath, name))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %w", ErrPrune, err)
		}
	}

	return nil
}
