// Package driven defines the outbound capability contracts the core
// depends on: the vector store, the key/value cache and feature flags, and
// the LLM completion and embedding services.
//
// Adapters under internal/adapters/driven implement these interfaces.
package driven
