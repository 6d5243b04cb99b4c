// Package errors provides the classified error primitives shared by the site builder.
//
// Every failure that crosses a pipeline stage boundary is a ClassifiedError carrying a
// category from the pipeline taxonomy (validation, theme_install, content_write,
// build_tool, packaging) plus severity, retry strategy and structured context.
//
// Example usage:
//
//	err := errors.ThemeInstallError("theme fetch timed out").
//		WithCause(ctx.Err()).
//		WithContext("theme", id).
//		Timeout().
//		Build()
package errors
