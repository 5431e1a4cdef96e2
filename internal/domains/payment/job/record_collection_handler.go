package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"casanova-portal/internal/domains/payment/model"
	"casanova-portal/internal/domains/payment/service"
	"casanova-portal/internal/shared"
)

// RecordCollectionHandler writes one paid intent back to the ledger. Asynq's
// retry with backoff covers transient ledger outages; a not-paid intent is a
// permanent condition and must not be retried.
type RecordCollectionHandler struct {
	paymentService service.PaymentService
}

func NewRecordCollectionHandler(paymentService service.PaymentService) *RecordCollectionHandler {
	return &RecordCollectionHandler{
		paymentService: paymentService,
	}
}

func (h *RecordCollectionHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var payload shared.RecordCollectionPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		log.Error().Err(err).Msg("Unmarshal record collection payload failed")
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	err := h.paymentService.RecordCollection(ctx, payload.IntentID)
	if err != nil {
		if errors.Is(err, model.ErrIntentNotPaid) || errors.Is(err, model.ErrIntentNotFound) {
			log.Warn().Err(err).Int64("intent_id", payload.IntentID).Msg("Record collection skipped")
			return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
		}
		log.Error().Err(err).Int64("intent_id", payload.IntentID).Msg("Record collection failed")
		return err
	}
	return nil
}
