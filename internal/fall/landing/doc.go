// Package landing classifies how a climber landed from the contact profile
// and evaluates the breakfall rule battery.
//
// Responsibilities: the standing-landing check, the landing tag (Classify),
// contact features (order, gaps), the R-0..R-7 battery (EvaluateRules) and
// coaching lines. Classify and EvaluateRules derive their verdicts
// independently; the battery never trusts the tag.
package landing
