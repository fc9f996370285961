// Package contact builds the contact-time profile of a fall: the frame at
// which each body part reached the mat.
//
// Responsibilities: per-part touchdown search over hip, back, hands and
// elbows with static per-part criteria, the back convergence chain, the
// head proxy and the head-safety collapse check. Feet contact is the
// canonical touch frame from the events package.
//
// Per-part criteria are package-level read-only tables. The independent
// part searches share only read-only tracks, so Extractor.Parallel may run
// them concurrently.
package contact
