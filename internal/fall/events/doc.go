// Package events finds the two frames that bound a fall: t_drop, where
// free fall begins, and t_touch, the first ground contact.
//
// Responsibilities: adaptive drop-onset search on the center-of-mass
// velocity, touchdown confirmation by deceleration, velocity collapse and
// jerk, ankle refinement, the minimum-airtime correction and the hold-gate
// retry loop. Key types: Detector, Params, TouchCriteria, Events.
//
// FirstTouch is the single-track touchdown search shared with the contact
// extractor, which runs it on every body part with its own criteria.
//
// Dependency rule: events depends only on kinematics; it never reads
// keypoint frames.
package events
