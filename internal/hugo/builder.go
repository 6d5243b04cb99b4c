package hugo

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"git.home.luguber.info/inful/sitebuilder/internal/executor"
	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
)

const (
	// DefaultExecutable is the builder invoked when none is configured.
	DefaultExecutable = "hugo"
	// DefaultBuildTimeout bounds one build when no timeout is configured.
	DefaultBuildTimeout = 5 * time.Minute
	// OutputDir is where the builder writes the rendered site, relative to the project root.
	OutputDir = "public"
)

// BuildOutcome is everything observed about one builder invocation. Output is
// kept even when the build fails since it is the main diagnostic.
type BuildOutcome struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Lines returns the non-empty output lines, stdout first.
func (o BuildOutcome) Lines() (stdout, stderr []string) {
	return splitLines(o.Stdout), splitLines(o.Stderr)
}

// Builder renders the project at root into root/public.
//
// Implementations run exactly once per call; retrying is the caller's decision.
type Builder interface {
	Build(ctx context.Context, root string) (BuildOutcome, error)
}

// BuilderFunc adapts a function to Builder.
type BuilderFunc func(ctx context.Context, root string) (BuildOutcome, error)

// Build calls f.
func (f BuilderFunc) Build(ctx context.Context, root string) (BuildOutcome, error) {
	return f(ctx, root)
}

// VersionReporter is implemented by builders that can report their tool version.
type VersionReporter interface {
	Version(ctx context.Context) (string, error)
}

// BinaryBuilder invokes a Hugo executable with the project root as working directory.
type BinaryBuilder struct {
	Executable string
	Args       []string
	Env        []string
	Timeout    time.Duration
}

// NewBinaryBuilder returns a builder for executable, falling back to defaults for
// empty values.
func NewBinaryBuilder(executable string, args []string, timeout time.Duration) *BinaryBuilder {
	if executable == "" {
		executable = DefaultExecutable
	}
	if timeout <= 0 {
		timeout = DefaultBuildTimeout
	}
	return &BinaryBuilder{Executable: executable, Args: args, Timeout: timeout}
}

// Build runs the builder once. A non-zero exit or an exhausted time budget is
// a fatal build_tool error; the process is killed on timeout or cancellation.
func (b *BinaryBuilder) Build(ctx context.Context, root string) (BuildOutcome, error) {
	exe, err := exec.LookPath(b.Executable)
	if err != nil {
		return BuildOutcome{}, ferrors.BuildToolError(fmt.Sprintf("%s is not installed", b.Executable)).
			WithCause(fmt.Errorf("%w: %w", ErrBuilderNotFound, err)).
			UserAction().
			Build()
	}
	if info, statErr := os.Stat(root); statErr != nil || !info.IsDir() {
		return BuildOutcome{}, ferrors.BuildToolError("project directory missing before build").
			WithCause(statErr).
			WithContext("path", root).
			Build()
	}

	slog.Debug("Invoking site builder", logfields.Path(root), slog.String("executable", exe))
	res, runErr := executor.Run(ctx, executor.Command{
		Name:    exe,
		Args:    b.Args,
		Dir:     root,
		Env:     b.Env,
		Timeout: b.Timeout,
	})
	var out BuildOutcome
	if res != nil {
		out = BuildOutcome{Stdout: res.Stdout, Stderr: res.Stderr, ExitCode: res.ExitCode, Duration: res.Duration}
	}

	switch {
	case runErr == nil:
		return out, nil
	case errors.Is(runErr, executor.ErrTimeout):
		return out, ferrors.BuildToolError(fmt.Sprintf("site build timed out after %s", b.Timeout)).
			WithCause(runErr).
			Timeout().
			Build()
	case ctx.Err() != nil:
		return out, ferrors.CanceledError("site build canceled").WithCause(ctx.Err()).Build()
	default:
		return out, ferrors.BuildToolError(fmt.Sprintf("site build failed: %s", summarize(out))).
			WithCause(fmt.Errorf("%w: %w", ErrBuildFailed, runErr)).
			WithContext("exit_code", out.ExitCode).
			Build()
	}
}

// Version reports the executable's version.
func (b *BinaryBuilder) Version(ctx context.Context) (string, error) {
	return DetectVersion(ctx, b.Executable)
}

// summarize picks the most useful single line of builder output for error text.
// Hugo reports template errors on stderr, but some failures only reach stdout.
func summarize(o BuildOutcome) string {
	for _, stream := range []string{o.Stderr, o.Stdout} {
		lines := splitLines(stream)
		for i := len(lines) - 1; i >= 0; i-- {
			if strings.Contains(strings.ToLower(lines[i]), "error") {
				return lines[i]
			}
		}
	}
	if lines := splitLines(o.Stderr); len(lines) > 0 {
		return lines[len(lines)-1]
	}
	return fmt.Sprintf("exit status %d", o.ExitCode)
}

func splitLines(s string) []string {
	var out []string
	sc := bufio.NewScanner(strings.NewReader(s))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if line := strings.TrimRight(sc.Text(), "\r"); strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}
