package shared

// Asynq task types and queues.
const (
	TypeCollectionSweep  = "payments:collection_sweep"
	TypeRecordCollection = "payments:record_collection"

	QueuePayments = "payments"
)

// CollectionSweepPayload bounds one sweep run.
type CollectionSweepPayload struct {
	Limit int `json:"limit,omitempty"`
}

// RecordCollectionPayload targets a single paid intent.
type RecordCollectionPayload struct {
	IntentID int64 `json:"intent_id"`
}
