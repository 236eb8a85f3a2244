// Package confidence derives the validated confidence grade for a stage
// output from evidence signals, never from the model's self-report alone.
//
// The aggregation is a fixed cap table evaluated first-match-wins; caps
// only ever lower a grade, never raise it. Given identical inputs the
// grade is identical: no randomness, no clock, no model involvement.
package confidence
