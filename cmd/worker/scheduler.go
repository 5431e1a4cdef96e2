package main

import (
	"log"

	"casanova-portal/internal/config"
	"casanova-portal/internal/infrastructure/queue"
)

// asynqScheduler wraps queue.Scheduler for lifecycle control.
type asynqScheduler struct {
	*queue.Scheduler
}

func setupScheduler(redisAddr string, jobConfig config.JobConfig) *asynqScheduler {
	scheduler := queue.NewScheduler(redisAddr, jobConfig)

	if err := scheduler.RegisterPaymentJobs(); err != nil {
		log.Fatalf("[Scheduler] Failed to register: %v", err)
	}

	go func() {
		log.Println("[Scheduler] Starting...")
		if err := scheduler.Start(); err != nil {
			log.Fatalf("[Scheduler] Failed: %v", err)
		}
	}()

	return &asynqScheduler{Scheduler: scheduler}
}

func (s *asynqScheduler) Shutdown() {
	log.Println("[Scheduler] Shutting down...")
	s.Scheduler.Shutdown()
	log.Println("[Scheduler] Stopped")
}
