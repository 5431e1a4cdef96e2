package job

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"casanova-portal/internal/domains/payment/service"
	"casanova-portal/internal/shared"
)

const defaultSweepLimit = 100

// CollectionSweepHandler retries the ledger write-back for paid intents whose
// cobro is still unrecorded. The inline write-back after a webhook is best
// effort; this sweep is what makes the ledger eventually consistent.
type CollectionSweepHandler struct {
	paymentService service.PaymentService
}

func NewCollectionSweepHandler(paymentService service.PaymentService) *CollectionSweepHandler {
	return &CollectionSweepHandler{
		paymentService: paymentService,
	}
}

func (h *CollectionSweepHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var payload shared.CollectionSweepPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		log.Error().Err(err).Msg("Unmarshal collection sweep payload failed")
		return err
	}

	limit := payload.Limit
	if limit <= 0 {
		limit = defaultSweepLimit
	}

	recorded, err := h.paymentService.SweepPendingCollections(ctx, limit)
	if err != nil {
		log.Error().Err(err).Msg("Collection sweep failed")
		return err
	}

	log.Info().
		Int("recorded", recorded).
		Int("limit", limit).
		Msg("Collection sweep completed")
	return nil
}
