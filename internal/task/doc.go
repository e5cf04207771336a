// Package task manages asynchronous processing of content submissions.
// It defines the task store contract, the three-stage processing pipeline
// (extract, generate, persist), and the worker-pool runner that drives
// queued tasks to a terminal state. Long-running work never blocks HTTP
// request handling; clients observe progress by polling the task record.
package task
