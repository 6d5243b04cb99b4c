package themes

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"git.home.luguber.info/inful/sitebuilder/internal/executor"
)

// Fetcher materializes a remote theme origin into dest. dest exists and is empty.
// Implementations must honor ctx and must never prompt for credentials.
type Fetcher interface {
	Fetch(ctx context.Context, origin Origin, dest string) error
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, origin Origin, dest string) error

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, origin Origin, dest string) error {
	return f(ctx, origin, dest)
}

// GitFetcher clones theme repositories in-process with go-git. It performs a
// shallow, single-branch clone without tags. go-git has no interactive
// credential prompt, and no auth is configured.
type GitFetcher struct{}

// Fetch clones origin.URL into dest.
func (GitFetcher) Fetch(ctx context.Context, origin Origin, dest string) error {
	opts := &git.CloneOptions{
		URL:          origin.URL,
		Depth:        1,
		SingleBranch: true,
		Tags:         git.NoTags,
	}
	if ref := referenceName(origin.Ref); ref != "" {
		opts.ReferenceName = ref
	}
	if _, err := git.PlainCloneContext(ctx, dest, false, opts); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("clone %s: %w", origin.URL, ctxErr)
		}
		return classifyCloneError(origin.URL, err)
	}
	return nil
}

func referenceName(ref string) plumbing.ReferenceName {
	switch {
	case ref == "":
		return ""
	case strings.HasPrefix(ref, "refs/"):
		return plumbing.ReferenceName(ref)
	default:
		return plumbing.NewBranchReferenceName(ref)
	}
}

// ErrThemeRepositoryNotFound is wrapped when the origin does not exist or needs credentials.
var ErrThemeRepositoryNotFound = errors.New("theme repository not found or not public")

func classifyCloneError(url string, err error) error {
	l := strings.ToLower(err.Error())
	switch {
	case strings.Contains(l, "repository not found"),
		strings.Contains(l, "authentication required"),
		strings.Contains(l, "authorization failed"),
		strings.Contains(l, "could not read username"):
		return fmt.Errorf("clone %s: %w: %v", url, ErrThemeRepositoryNotFound, err)
	case errors.Is(err, plumbing.ErrReferenceNotFound), strings.Contains(l, "couldn't find remote ref"):
		return fmt.Errorf("clone %s: reference not found: %w", url, err)
	default:
		return fmt.Errorf("clone %s: %w", url, err)
	}
}

// CommandFetcher clones with the git executable, for hosts where the system git
// carries proxy or CA configuration go-git does not read. Prompting is disabled
// through the environment and by clearing credential helpers.
type CommandFetcher struct {
	// Executable defaults to "git".
	Executable string
}

// Fetch runs `git clone --depth 1` into dest.
func (f CommandFetcher) Fetch(ctx context.Context, origin Origin, dest string) error {
	name := f.Executable
	if name == "" {
		name = "git"
	}
	args := []string{
		"-c", "credential.helper=",
		"-c", "core.askPass=",
		"clone", "--quiet", "--depth", "1", "--single-branch", "--no-tags",
	}
	if origin.Ref != "" {
		args = append(args, "--branch", strings.TrimPrefix(strings.TrimPrefix(origin.Ref, "refs/heads/"), "refs/tags/"))
	}
	args = append(args, "--", origin.URL, dest)

	res, err := executor.Run(ctx, executor.Command{
		Name: name,
		Args: args,
		Env:  []string{"GIT_TERMINAL_PROMPT=0", "GIT_ASKPASS=", "SSH_ASKPASS=", "GCM_INTERACTIVE=never"},
	})
	if err != nil {
		if res != nil && strings.TrimSpace(res.Stderr) != "" {
			return classifyCloneError(origin.URL, fmt.Errorf("%w: %s", err, strings.TrimSpace(res.Stderr)))
		}
		return classifyCloneError(origin.URL, err)
	}
	return nil
}
