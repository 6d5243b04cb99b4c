// Package themes holds the theme catalog and the logic that chooses and
// materializes a theme for one site.
//
// The Registry is immutable after construction and safe to share between
// concurrent pipeline runs. Selector is a pure function over the registry and
// the wizard input. Installer copies a bundled theme or fetches a remote one
// into a workspace through a Fetcher.
package themes
