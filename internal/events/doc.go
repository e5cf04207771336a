// Package events provides a minimal in-process event system used to
// decouple task submission from task dispatch: the processor service
// emits a TaskRequestEvent after creating a task record, and a handler
// wired at startup hands the task ID to the runner.
package events
