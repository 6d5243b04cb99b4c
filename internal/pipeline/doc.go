// Package pipeline sequences one site generation run through a fixed state
// machine:
//
//	INITIALIZING -> BUILDING_STRUCTURE -> APPLYING_THEME -> GENERATING_CONTENT
//	             -> BUILDING_SITE -> PACKAGING -> COMPLETE
//
// Any non-terminal state may move to FAILED. A run never retries a stage; the
// caller reruns the whole pipeline with a fresh run identifier.
//
// Each run owns exactly one workspace. It is removed when the run fails, is
// canceled or completes, except after a packaging failure where the tree is
// kept (and stamped) for inspection.
//
// Progress is reported to Observers on every transition. The BuildResult a run
// returns carries the stage-tagged log, errors, timings and metadata.
package pipeline
