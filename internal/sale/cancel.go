package sale

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"kasirpos/backend/internal/domain"
	"kasirpos/backend/internal/events"
	"kasirpos/backend/internal/ledger"
	"kasirpos/backend/internal/store"
	"kasirpos/backend/internal/telemetry"
)

// Cancel reverses a completed sale with compensating records: a
// cancellation row, one stock_in movement per item and a loyalty reversal.
// The sale row itself is left untouched and promotion usage is not given
// back.
func (p *Processor) Cancel(ctx context.Context, saleID string, reason string) (domain.CancelSaleResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "sale.Cancel")
	defer span.End()
	span.SetAttributes(attribute.String("sale.id", saleID))

	saleID = strings.TrimSpace(saleID)
	reason = strings.TrimSpace(reason)
	if saleID == "" {
		return domain.CancelSaleResponse{}, fmt.Errorf("%w: sale id is required", store.ErrInvalidInput)
	}
	actorID := domain.ActorID(ctx)

	var resp domain.CancelSaleResponse
	err := p.retry(ctx, "cancel", func(now time.Time) error {
		var attemptErr error
		resp, attemptErr = p.cancelAttempt(ctx, saleID, reason, actorID, now)
		return attemptErr
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.CancelSaleResponse{}, err
	}

	telemetry.SalesCancelledTotal.Inc()
	telemetry.L().Info("sale cancelled",
		zap.String("sale_id", resp.Sale.ID),
		zap.String("transaction_number", resp.Sale.TransactionNumber),
		zap.String("actor", actorID),
		zap.String("reason", reason),
		zap.Int("movements", len(resp.Movements)),
	)
	p.invalidateReports(ctx)
	p.publish(ctx, events.TypeSaleCancelled, resp.Sale)
	return resp, nil
}

func (p *Processor) cancelAttempt(ctx context.Context, saleID string, reason string, actorID string, now time.Time) (domain.CancelSaleResponse, error) {
	var resp domain.CancelSaleResponse
	err := p.repo.WithTx(ctx, func(tx store.Tx) error {
		sale, err := tx.GetSale(ctx, saleID)
		if err != nil {
			return err
		}
		if sale.Cancellation != nil || sale.Status == domain.SaleStatusCancelled {
			return store.ErrSaleAlreadyCancelled
		}
		if sale.Status != domain.SaleStatusCompleted {
			return fmt.Errorf("%w: sale %s is %s", store.ErrInvalidInput, sale.TransactionNumber, sale.Status)
		}

		if err := tx.InsertCancellation(ctx, domain.SaleCancellation{
			SaleID:    sale.ID,
			Reason:    reason,
			ActorID:   actorID,
			CreatedAt: now,
		}); err != nil {
			return err
		}

		movements := make([]domain.InventoryMovement, 0, len(sale.Items))
		for _, item := range sale.Items {
			movement, err := ledger.ReserveAndCommit(ctx, tx, ledger.Movement{
				ProductID:     item.ProductID,
				Type:          domain.MovementStockIn,
				Quantity:      item.Quantity,
				ReferenceType: domain.ReferenceSaleCancellation,
				ReferenceID:   sale.ID,
				Notes:         "Cancel: " + sale.TransactionNumber,
				ActorID:       actorID,
			}, now)
			if err != nil {
				return err
			}
			movements = append(movements, movement)
		}

		if _, err := p.loyalty.Reverse(ctx, tx, sale.CustomerID, sale.LoyaltyPointsAwarded); err != nil {
			return err
		}

		cancelled, err := tx.GetSale(ctx, sale.ID)
		if err != nil {
			return err
		}
		resp = domain.CancelSaleResponse{Sale: *cancelled, Movements: movements}
		return nil
	})
	return resp, err
}
