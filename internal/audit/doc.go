// Package audit publishes case lifecycle events to NATS.
//
// Events are advisory fan-out for observers (review queues, dashboards):
// the session's stage records remain the authoritative audit trail, so a
// publish failure is logged and dropped, never allowed to fail the
// pipeline that produced the event.
package audit
