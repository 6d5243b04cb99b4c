// Package metrics provides the observability hooks of the site builder.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so metrics stay optional without nil checks at call sites:
//
//	orch := pipeline.New(deps, pipeline.WithRecorder(metrics.NewPrometheusRecorder(reg)))
//
// Watch mode serves the registry through HTTPHandler.
package metrics
