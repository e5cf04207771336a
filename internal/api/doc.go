// Package api contains the HTTP handlers for the processor endpoints:
// task submission, status polling, and cancellation. Handlers translate
// between wire shapes and the processor service; they hold no task
// state of their own.
package api
