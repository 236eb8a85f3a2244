// Package stages defines the specialist stages of the case pipeline and
// their dependency graph.
//
// Seven stages cover the intake-to-draft flow: issue extraction, case-law
// retrieval, limitation check, argument building, document drafting,
// compliance check, and legal-aid suggestion. Stages declare typed output
// contracts validated at the boundary; they never call each other, only
// the orchestrator schedules them.
package stages
