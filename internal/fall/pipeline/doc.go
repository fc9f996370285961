// Package pipeline runs a full fall analysis over a keypoint sequence.
//
// Responsibilities: input validation, track derivation, event detection,
// height estimation and gating, and (unless the fall is low_ok) contact
// extraction, landing classification, the rule battery and coaching.
// Every stage result is folded into a report.Report.
package pipeline
