// Package identity derives the deterministic stable identifiers used as
// the reconciler's join keys.
package identity

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// messageNamespace is the fixed namespace for Slack message ids. Changing
// it would re-key every indexed message.
var messageNamespace = uuid.MustParse("8a4f1d2c-6b3e-4f8a-9c1d-2e5b7a9f0c3d")

// MessageDocumentID returns the document id for a Slack message: a
// name-based UUID of "channelID:ts", stable across runs.
func MessageDocumentID(channelID, ts string) string {
	return uuid.NewSHA1(messageNamespace, []byte(channelID+":"+ts)).String()
}

// ContentHash returns the SHA-1 hex digest of the given text. Used as the
// change signal for website pages, which have no edit-timestamp concept.
func ContentHash(text string) string {
	sum := sha1.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}

// ChunkID returns the id for chunk n of a parent document. Chunk 0 of an
// unchunked document keeps the parent id itself.
func ChunkID(parentID string, n, total int) string {
	if total <= 1 {
		return parentID
	}
	return fmt.Sprintf("%s#%d", parentID, n)
}
