// Package citation validates claim-citation pairs against the exact
// retrieval set a stage had access to.
//
// The rules implement the single most safety-critical contract in the
// system, "no citation, no claim":
//
//   - A citation whose source is absent from the stage's retrieval set is
//     UNVERIFIED; any claim carrying one is rejected outright.
//   - A citation whose excerpt overlap with the source text falls below
//     the configured threshold is WEAK; claims with only WEAK citations
//     survive but can never exceed MEDIUM confidence downstream.
//   - Claim-bearing stages producing a claim with zero citations have that
//     claim rejected, never silently accepted.
//
// Validation is a content-quality outcome, not a failure: rejection feeds
// the confidence aggregator and gate instead of failing the stage.
package citation
