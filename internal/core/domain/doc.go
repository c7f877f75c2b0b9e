// Package domain contains the core business entities for communitybot:
// indexed documents, sync targets and their reconciliation stats, and the
// community entities backed by the Notion workspace.
//
// Domain types have no dependencies on adapters or external services.
package domain
