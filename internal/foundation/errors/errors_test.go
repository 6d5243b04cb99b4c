package errors

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderProducesClassifiedError(t *testing.T) {
	cause := context.DeadlineExceeded
	err := ThemeInstallError("theme fetch exceeded budget").
		WithCause(cause).
		WithContext("theme", "ananke").
		Timeout().
		Build()

	assert.Equal(t, CategoryThemeInstall, err.Category())
	assert.True(t, err.IsFatal())
	assert.True(t, err.IsTimeout())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "[timeout]")

	theme, ok := err.Context().GetString("theme")
	require.True(t, ok)
	assert.Equal(t, "ananke", theme)
}

func TestHasCategoryWalksWrapChain(t *testing.T) {
	inner := BuildToolError("hugo exited with status 1").Build()
	wrapped := fmt.Errorf("stage building_site: %w", inner)

	assert.True(t, HasCategory(wrapped, CategoryBuildTool))
	assert.False(t, HasCategory(wrapped, CategoryPackaging))
	assert.Equal(t, CategoryBuildTool, GetCategory(wrapped))
	assert.False(t, IsTimeout(wrapped))
}

func TestWithContextDoesNotMutateOriginal(t *testing.T) {
	base := ValidationError("missing business name").Build()
	derived := base.WithContext("field", "businessInfo.name")

	_, ok := base.Context().Get("field")
	assert.False(t, ok)
	_, ok = derived.Context().Get("field")
	assert.True(t, ok)
}

func TestCLIAdapterExitCodes(t *testing.T) {
	a := NewCLIErrorAdapter(false, nil)
	cases := map[ErrorCategory]int{
		CategoryValidation:   2,
		CategoryConfig:       7,
		CategoryThemeInstall: 8,
		CategoryBuildTool:    11,
		CategoryPackaging:    12,
		CategoryCanceled:     130,
	}
	for cat, code := range cases {
		assert.Equal(t, code, a.ExitCodeFor(NewError(cat, "x").Build()), cat)
	}
	assert.Equal(t, 1, a.ExitCodeFor(fmt.Errorf("plain")))
	assert.Equal(t, 0, a.ExitCodeFor(nil))
}

func TestCLIAdapterReport(t *testing.T) {
	var buf bytes.Buffer
	a := NewCLIErrorAdapter(false, nil)
	code := a.Report(&buf, BuildToolError("hugo exited with status 255").Build())

	assert.Equal(t, 11, code)
	assert.Equal(t, "Error (build_tool): hugo exited with status 255\n", buf.String())
}
