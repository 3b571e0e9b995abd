// Package integrity provides the hash helpers that protect the event log's
// tamper-evident chain.
//
// Why this package exists:
// - It defines the canonical hash envelope in one place so field ordering
//   cannot drift between the append path and verification.
// - It links events into a chain so any rewrite of history is detectable.
// - It isolates cryptographic details from higher-level storage code.
package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/louisbranch/rivalry.club/internal/event"
)

// GenesisHash seeds the chain before any event exists.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// Discrepancy kinds reported by VerifyRecords.
const (
	KindPreviousHashMismatch = "previous_hash_mismatch"
	KindEventHashMismatch    = "event_hash_mismatch"
)

// Discrepancy is one broken link found during chain verification.
type Discrepancy struct {
	EventID  int64
	Kind     string
	Expected string
	Actual   string
}

// envelope is the canonical hash input. Field order is part of the wire
// format: encoding/json emits struct fields in declaration order, so
// reordering these fields invalidates every stored hash.
type envelope struct {
	ID           int64           `json:"id"`
	EventType    string          `json:"event_type"`
	Payload      json.RawMessage `json:"payload"`
	CreatedAt    int64           `json:"created_at"`
	PreviousHash string          `json:"previous_hash"`
}

// ChainHash computes the SHA-256 hash linking evt to its predecessor. The
// event must already carry the storage-assigned ID and CreatedAt.
func ChainHash(evt event.Event, prevHash string) (string, error) {
	input, err := json.Marshal(envelope{
		ID:           evt.ID,
		EventType:    string(evt.Type),
		Payload:      json.RawMessage(evt.PayloadJSON),
		CreatedAt:    evt.CreatedAt.UTC().UnixMilli(),
		PreviousHash: prevHash,
	})
	if err != nil {
		return "", fmt.Errorf("marshal hash envelope: %w", err)
	}

	sum := sha256.Sum256(input)
	return hex.EncodeToString(sum[:]), nil
}

// VerifyRecords walks records in order and re-derives the chain, collecting
// every discrepancy instead of stopping at the first. Records must be the
// entire log sorted by ID.
//
// A tampered payload surfaces as exactly one event_hash_mismatch on the
// altered record: each stored hash is recomputed against the record's own
// stored previous_hash, and the expected link for the next record comes from
// the stored (not recomputed) hash.
func VerifyRecords(records []event.Event) []Discrepancy {
	var discrepancies []Discrepancy

	prevHash := GenesisHash
	for _, evt := range records {
		if evt.PrevHash != prevHash {
			discrepancies = append(discrepancies, Discrepancy{
				EventID:  evt.ID,
				Kind:     KindPreviousHashMismatch,
				Expected: prevHash,
				Actual:   evt.PrevHash,
			})
		}

		computed, err := ChainHash(evt, evt.PrevHash)
		if err != nil || evt.Hash != computed {
			discrepancies = append(discrepancies, Discrepancy{
				EventID:  evt.ID,
				Kind:     KindEventHashMismatch,
				Expected: computed,
				Actual:   evt.Hash,
			})
		}

		prevHash = evt.Hash
	}

	return discrepancies
}
