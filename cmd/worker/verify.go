package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/document-ledger/internal/core/domain"
	"github.com/kirillkom/document-ledger/internal/observability/metrics"
)

const verifyTimeout = 2 * time.Minute

type chainVerifier interface {
	Verify(ctx context.Context, documentHash string) (domain.Verification, error)
}

// newVerifyHandler re-verifies the chain named by each block event. A broken
// chain is logged and counted; only infrastructure failures are returned.
func newVerifyHandler(verifier chainVerifier, m *metrics.WorkerMetrics, now func() time.Time) func(context.Context, domain.BlockEvent) error {
	return func(ctx context.Context, event domain.BlockEvent) error {
		start := now()
		m.ObserveEventLag(serviceName, start.Sub(event.OccurredAt))
		m.StartVerification()

		verifyCtx, cancel := context.WithTimeout(ctx, verifyTimeout)
		defer cancel()
		v, err := verifier.Verify(verifyCtx, event.DocumentHash)

		result := metrics.VerificationResult(v, err)
		m.FinishVerification(serviceName, result, now().Sub(start))

		if err != nil {
			return fmt.Errorf("verify chain %s: %w", event.ChainID, err)
		}
		attrs := []any{
			"chain_id", event.ChainID,
			"document_hash", event.DocumentHash,
			"sequence", event.Sequence,
			"action", string(event.Action),
			"result", result,
		}
		if !v.OK {
			slog.Error("chain_integrity_violation", append(attrs, "reason", v.Reason, "failed_sequence", v.Sequence)...)
			return nil
		}
		slog.Debug("chain_verified", append(attrs, "blocks", v.Blocks)...)
		return nil
	}
}
