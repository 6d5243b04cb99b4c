package hugo

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"time"

	"git.home.luguber.info/inful/sitebuilder/internal/executor"
)

const versionProbeTimeout = 15 * time.Second

var versionPattern = regexp.MustCompile(`v?(\d+\.\d+\.\d+)`)

// DetectVersion runs `<executable> version` and returns the semantic version.
// Expected output shapes:
//
//	hugo v0.152.2+extended linux/amd64 BuildDate=2024-12-20T08:00:00Z
//	Hugo Static Site Generator v0.152.2-extended
func DetectVersion(ctx context.Context, executable string) (string, error) {
	path, err := exec.LookPath(executable)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrBuilderNotFound, err)
	}
	res, err := executor.Run(ctx, executor.Command{
		Name:    path,
		Args:    []string{"version"},
		Timeout: versionProbeTimeout,
	})
	if err != nil {
		return "", fmt.Errorf("probe builder version: %w", err)
	}
	v := ParseVersion(res.Stdout)
	if v == "" {
		return "", errors.New("builder version output not recognized")
	}
	return v, nil
}

// ParseVersion extracts the numeric version (0.152.2) from version output, or "".
func ParseVersion(output string) string {
	if m := versionPattern.FindStringSubmatch(output); len(m) >= 2 {
		return m[1]
	}
	return ""
}
