// Package fraud implements the fraud detection engine: a fixed list of
// independent, read-only rules evaluated against a transaction and its
// wallet's history. Firing rules produce recorded reasons; at least one hit
// marks the transaction flagged.
package fraud

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/payvault/payvault/pkg/domain/events"
	"github.com/payvault/payvault/pkg/dto"
	"github.com/payvault/payvault/pkg/eventbus"
	"github.com/payvault/payvault/pkg/repository"
)

// Engine evaluates transactions against its rule set and records the
// outcome. The engine is a best-effort side channel: its errors are logged
// by callers, never allowed to affect the transaction that triggered it.
type Engine struct {
	uow    repository.UnitOfWork
	bus    eventbus.Bus
	rules  []Rule
	logger *slog.Logger
}

// NewEngine creates a fraud engine with the given rule list. Rules are
// injected at startup; there is no runtime registration.
func NewEngine(
	uow repository.UnitOfWork,
	bus eventbus.Bus,
	rules []Rule,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		uow:    uow,
		bus:    bus,
		rules:  rules,
		logger: logger.With("service", "fraud"),
	}
}

// Evaluate runs every rule against tx. All firing rules produce a reason;
// all reasons are persisted and the transaction's flagged attribute is set
// when at least one rule fired. A single misbehaving rule is logged and
// skipped, it cannot veto the others.
func (e *Engine) Evaluate(ctx context.Context, tx dto.TransactionRead) ([]string, error) {
	var reasons []string
	for _, rule := range e.rules {
		fired, err := rule.Evaluate(ctx, tx)
		if err != nil {
			e.logger.Error("fraud rule evaluation failed",
				"rule", rule.Name(),
				"reference", tx.Reference,
				"error", err,
			)
			continue
		}
		if fired {
			reasons = append(reasons, rule.Explain(tx))
			e.logger.Warn("fraud rule fired",
				"rule", rule.Name(),
				"reference", tx.Reference,
			)
		}
	}
	if len(reasons) == 0 {
		return nil, nil
	}

	err := e.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		for _, reason := range reasons {
			if err := uow.FlagReasons().Create(ctx, dto.FlagReasonCreate{
				Reason:    reason,
				Reference: tx.Reference,
			}); err != nil {
				return err
			}
		}
		flagged := true
		return uow.Transactions().Update(ctx, tx.ID, dto.TransactionUpdate{Flagged: &flagged})
	})
	if err != nil {
		return nil, fmt.Errorf("recording fraud flags for %s: %w", tx.Reference, err)
	}

	if err := e.bus.Emit(ctx, events.TransactionFlagged{
		TransactionID: tx.ID,
		WalletID:      tx.WalletID,
		Reference:     tx.Reference,
		Reasons:       reasons,
		OccurredAt:    time.Now(),
	}); err != nil {
		e.logger.Error("failed to emit flagged event", "reference", tx.Reference, "error", err)
	}
	return reasons, nil
}

// HandleStatusChanged is the bus subscription point: every committed status
// transition triggers an evaluation of the transaction.
func (e *Engine) HandleStatusChanged(ctx context.Context, event eventbus.Event) error {
	ev, ok := event.(events.TransactionStatusChanged)
	if !ok {
		return fmt.Errorf("unexpected event %T", event)
	}
	tx, err := e.uow.Transactions().Get(ctx, ev.TransactionID)
	if err != nil {
		return err
	}
	_, err = e.Evaluate(ctx, *tx)
	return err
}
