package ledger

import (
	"context"
	"fmt"

	"github.com/kirillkom/document-ledger/internal/core/domain"
)

const (
	ReasonIntact        = "Cadena íntegra"
	ReasonChainNotFound = "Cadena no encontrada"
)

// NotFound is the verification result for a document without a chain.
func NotFound(documentHash string) domain.Verification {
	return domain.Verification{
		DocumentHash: documentHash,
		OK:           false,
		Reason:       ReasonChainNotFound,
		Kind:         domain.ErrChainNotFound,
	}
}

// Verify replays the chain in ascending sequence order and stops at the
// first block whose stored hash or back link does not hold. The context is
// checked between blocks.
func Verify(ctx context.Context, chain domain.Chain) (domain.Verification, error) {
	sorted := chain.Sorted()
	result := domain.Verification{
		DocumentHash: chain.DocumentHash,
		Blocks:       len(sorted.Blocks),
	}

	bySequence := make(map[int64]domain.Block, len(sorted.Blocks))
	for _, b := range sorted.Blocks {
		bySequence[b.Sequence] = b
	}

	for _, b := range sorted.Blocks {
		if err := ctx.Err(); err != nil {
			return domain.Verification{}, err
		}
		if ComputeBlockHash(b) != b.Hash {
			result.Reason = fmt.Sprintf("Hash inválido en bloque %d", b.Sequence)
			result.Kind = domain.ErrInvalidBlockHash
			result.Sequence = b.Sequence
			return result, nil
		}
		if b.Sequence == 0 {
			continue
		}
		prev, ok := bySequence[b.Sequence-1]
		if !ok || b.PreviousHash != prev.Hash {
			result.Reason = fmt.Sprintf("Enlace roto en bloque %d", b.Sequence)
			result.Kind = domain.ErrBrokenLink
			result.Sequence = b.Sequence
			return result, nil
		}
	}

	result.OK = true
	result.Reason = ReasonIntact
	return result, nil
}
