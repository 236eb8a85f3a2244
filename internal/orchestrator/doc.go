// Package orchestrator drives case sessions through the stage graph.
//
// One orchestrator serves many sessions; each session is mutated only
// under its own lock, applying stage runner and handoff gate return
// values. Independent graph branches run concurrently, dependent stages
// strictly serialize, and a suspended session (AWAITING_HUMAN or BLOCKED)
// only moves again through the human resume contract.
package orchestrator
