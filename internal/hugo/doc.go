// Package hugo assembles a Hugo project inside a pipeline workspace and renders it.
//
// The package covers the builder-facing half of a run:
//
//   - BuildStructure creates the directory skeleton Hugo expects.
//   - WriteConfig serializes the resolved theme parameters and navigation to hugo.yaml.
//   - ContentWriter turns content records into pages, data files and static assets,
//     tracking the outcome of every record.
//   - BinaryBuilder runs the hugo executable against the workspace. Builder is the
//     seam tests use to substitute a fake.
//   - DetectVersion and CheckRenderedSite inspect the tool and its output.
//
// Nothing in this package deletes a workspace; cleanup belongs to the orchestrator.
package hugo
