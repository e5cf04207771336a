// Package domain contains the core business entities and domain logic of
// the application: the task lifecycle state machine, flashcards, and
// generation options. It is independent of any specific infrastructure or
// delivery mechanism.
package domain
