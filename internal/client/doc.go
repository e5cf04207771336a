// Package client is the Go client for the processor API. It submits
// tasks, polls them to completion with bounded retries, and requests
// cancellation.
package client
