// Package ledger builds and verifies per-document hash chains.
//
// The block digest covers only sequence number, document hash, timestamp,
// action and previous block hash. Metadata snapshots and the actor are
// stored but not hashed, so editing them on disk is not detectable by
// Verify. Existing chains depend on this input set.
package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/kirillkom/document-ledger/internal/core/domain"
)

// ComputeBlockHash returns the hex SHA-256 of the block's hashed fields.
func ComputeBlockHash(b domain.Block) string {
	h := sha256.New()
	h.Write([]byte(strconv.FormatInt(b.Sequence, 10)))
	h.Write([]byte(b.DocumentHash))
	h.Write([]byte(b.Timestamp.Format(domain.TimestampLayout)))
	h.Write([]byte(b.Action))
	h.Write([]byte(b.PreviousHash))
	return hex.EncodeToString(h.Sum(nil))
}

// NewGenesis builds sequence 0 of a chain, credited to the document creator.
func NewGenesis(documentHash string, meta domain.Metadata, at time.Time) domain.Block {
	return NewGenesisWithAction(documentHash, domain.ActionCreated, meta, meta.Creator, at)
}

// NewGenesisWithAction builds a genesis block with an explicit action label,
// used when a content replacement starts a chain for the new hash.
func NewGenesisWithAction(documentHash string, action domain.Action, meta domain.Metadata, actor string, at time.Time) domain.Block {
	b := domain.Block{
		Sequence:     0,
		DocumentHash: documentHash,
		Snapshot:     meta,
		PreviousHash: domain.GenesisPreviousHash,
		Timestamp:    truncate(at),
		Action:       action,
		Actor:        actor,
	}
	b.Hash = ComputeBlockHash(b)
	return b
}

// NextBlock builds the successor of prev.
func NextBlock(prev domain.Block, documentHash string, action domain.Action, meta domain.Metadata, actor string, at time.Time) domain.Block {
	b := domain.Block{
		Sequence:     prev.Sequence + 1,
		DocumentHash: documentHash,
		Snapshot:     meta,
		PreviousHash: prev.Hash,
		Timestamp:    truncate(at),
		Action:       action,
		Actor:        actor,
	}
	b.Hash = ComputeBlockHash(b)
	return b
}

func truncate(t time.Time) time.Time {
	return t.Truncate(time.Second)
}
