package main

import (
	"github.com/hibiken/asynq"

	"casanova-portal/internal/domains/payment/job"
	"casanova-portal/internal/shared"
	"casanova-portal/pkg/container"
)

// HandlerRegistry holds all job handlers.
type HandlerRegistry struct {
	collectionSweep  *job.CollectionSweepHandler
	recordCollection *job.RecordCollectionHandler
}

func initializeHandlers(c *container.Container) *HandlerRegistry {
	return &HandlerRegistry{
		collectionSweep:  job.NewCollectionSweepHandler(c.PaymentService),
		recordCollection: job.NewRecordCollectionHandler(c.PaymentService),
	}
}

func (h *HandlerRegistry) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(shared.TypeCollectionSweep, h.collectionSweep.ProcessTask)
	mux.HandleFunc(shared.TypeRecordCollection, h.recordCollection.ProcessTask)
}
