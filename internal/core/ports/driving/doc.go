// Package driving defines the inbound contracts exposed by the core to its
// callers: the sync orchestrator entry points and the assistant.
package driving
