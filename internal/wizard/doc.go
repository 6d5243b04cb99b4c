// Package wizard models the WizardData document produced by the site wizard.
//
// The document is decoded strictly: unknown fields and malformed shapes are
// rejected at load time, and Validate reports every missing required field at
// once so the caller can fix the input in one pass.
package wizard
