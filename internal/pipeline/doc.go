// Package pipeline provides the event mapper that runs between the scope tree
// and the event publisher.
//
// # Architecture
//
// The executor runs ordered stages over every built event. A stage can keep
// the event as is, mutate it, or drop it:
//
//	keep   - continue with the current event
//	mutate - continue with StageOutput.Event
//	drop   - stop and discard the event (reported as a *DroppedError)
//
// Stages run synchronously on the RUM processing goroutine and must not block.
// Built-in stages drop events by type, redact attribute keys, or call a
// host-supplied mapping function.
package pipeline
