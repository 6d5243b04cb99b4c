// Package workspace manages the per-run working directories of the site builder.
//
// Every pipeline run owns exactly one Workspace under the manager's base directory,
// named after the run identifier (e.g. /var/lib/sitebuilder/work/3f2c...). Creation is
// exclusive, so two runs can never share a tree. A failed run either removes its
// workspace or marks it retained for inspection; Prune removes retained and stale
// trees later.
package workspace
