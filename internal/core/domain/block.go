package domain

import (
	"sort"
	"time"
)

// GenesisPreviousHash is stored as previous_block_hash of every genesis block.
const GenesisPreviousHash = "0"

// ChainIDLength is the number of leading hex characters of a content hash
// that address a chain.
const ChainIDLength = 16

// Action labels are compared as opaque strings; the set is open.
type Action string

const (
	ActionCreated            Action = "Documento Creado"
	ActionUploaded           Action = "Documento Subido"
	ActionReviewed           Action = "Revisado"
	ActionApproved           Action = "Aprobado"
	ActionRejected           Action = "Rechazado"
	ActionUpdated            Action = "Actualizado"
	ActionUpdatedWithNewFile Action = "Actualización con nuevo archivo"
)

type Block struct {
	Sequence     int64     `json:"sequence_number"`
	DocumentHash string    `json:"document_hash"`
	Snapshot     Metadata  `json:"metadata_snapshot"`
	PreviousHash string    `json:"previous_block_hash"`
	Timestamp    time.Time `json:"timestamp"`
	Action       Action    `json:"action"`
	Actor        string    `json:"actor"`
	Hash         string    `json:"block_hash"`
}

// Chain is the ordered block sequence of one document.
type Chain struct {
	DocumentHash string  `json:"document_hash"`
	Blocks       []Block `json:"blocks"`
}

// ChainID returns the storage key of the chain for a content hash.
func ChainID(documentHash string) string {
	if len(documentHash) <= ChainIDLength {
		return documentHash
	}
	return documentHash[:ChainIDLength]
}

// Sorted returns a copy of the chain with blocks in ascending sequence order.
func (c Chain) Sorted() Chain {
	blocks := make([]Block, len(c.Blocks))
	copy(blocks, c.Blocks)
	sort.SliceStable(blocks, func(i, j int) bool {
		return blocks[i].Sequence < blocks[j].Sequence
	})
	return Chain{DocumentHash: c.DocumentHash, Blocks: blocks}
}

// Latest returns the block with the highest sequence number.
func (c Chain) Latest() (Block, bool) {
	if len(c.Blocks) == 0 {
		return Block{}, false
	}
	latest := c.Blocks[0]
	for _, b := range c.Blocks[1:] {
		if b.Sequence > latest.Sequence {
			latest = b
		}
	}
	return latest, true
}

// HasActionBy reports whether actor already recorded action on this chain.
func (c Chain) HasActionBy(action Action, actor string) bool {
	for _, b := range c.Blocks {
		if b.Action == action && b.Actor == actor {
			return true
		}
	}
	return false
}

// BlockEvent is published after a block is durably appended.
type BlockEvent struct {
	DocumentHash  string    `json:"document_hash"`
	ChainID       string    `json:"chain_id"`
	Sequence      int64     `json:"sequence"`
	Action        Action    `json:"action"`
	Actor         string    `json:"actor"`
	BlockHash     string    `json:"block_hash"`
	Reinitialized bool      `json:"reinitialized"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Verification is the structured result of replaying a chain.
type Verification struct {
	DocumentHash string `json:"document_hash"`
	OK           bool   `json:"ok"`
	Reason       string `json:"reason"`
	// Kind is nil on success, otherwise ErrChainNotFound, ErrInvalidBlockHash
	// or ErrBrokenLink.
	Kind     error `json:"-"`
	Sequence int64 `json:"sequence,omitempty"`
	Blocks   int   `json:"blocks"`
}

type ChainIntegrity string

const (
	IntegrityIntact      ChainIntegrity = "intact"
	IntegrityCompromised ChainIntegrity = "compromised"
	IntegrityMissing     ChainIntegrity = "no_chain"
)

// ChainStatus is one dashboard row produced by verifying every registered chain.
type ChainStatus struct {
	DocumentHash  string         `json:"document_hash"`
	Name          string         `json:"name"`
	Type          string         `json:"type"`
	Status        DocumentStatus `json:"status"`
	Blocks        int            `json:"blocks"`
	LastAction    Action         `json:"last_action,omitempty"`
	LastTimestamp time.Time      `json:"last_timestamp,omitempty"`
	Integrity     ChainIntegrity `json:"integrity"`
	Reason        string         `json:"reason"`
}
