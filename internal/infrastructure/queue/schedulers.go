package queue

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"casanova-portal/internal/config"
	"casanova-portal/internal/shared"
)

type Scheduler struct {
	scheduler *asynq.Scheduler
	jobConfig config.JobConfig
}

func NewScheduler(redisAddress string, jobConfig config.JobConfig) *Scheduler {
	scheduler := asynq.NewScheduler(
		asynq.RedisClientOpt{Addr: redisAddress},
		&asynq.SchedulerOpts{
			Location: time.UTC,
			LogLevel: asynq.InfoLevel,
		},
	)

	return &Scheduler{
		scheduler: scheduler,
		jobConfig: jobConfig,
	}
}

func (s *Scheduler) RegisterPaymentJobs() error {
	return s.registerCollectionSweepJob()
}

// ================================================
// JOB: Collection Sweep
// ================================================
// Retries ledger write-backs that failed inline after a webhook. The cobro
// dedupe lives in the ledger itself, so overlapping runs stay safe.
func (s *Scheduler) registerCollectionSweepJob() error {
	payload, err := json.Marshal(shared.CollectionSweepPayload{
		Limit: s.jobConfig.CollectionSweepLimit,
	})
	if err != nil {
		return err
	}

	task := asynq.NewTask(shared.TypeCollectionSweep, payload)

	_, err = s.scheduler.Register(
		s.jobConfig.GetCollectionSweepCron(),
		task,
		asynq.Queue(shared.QueuePayments),
		asynq.MaxRetry(2),
		asynq.Timeout(5*time.Minute),
	)
	if err != nil {
		log.Error().Err(err).Msg("Failed to register CollectionSweep job")
		return err
	}

	log.Info().Str("cron", s.jobConfig.GetCollectionSweepCron()).Msg("Registered CollectionSweep job")
	return nil
}

func (s *Scheduler) Start() error {
	return s.scheduler.Run()
}

func (s *Scheduler) Shutdown() {
	s.scheduler.Shutdown()
}
