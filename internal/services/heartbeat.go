package services

import (
	"context"

	"document-service/pkg/logger"

	"github.com/robfig/cron/v3"
)

type heartbeater interface {
	Heartbeat() int
}

// CronHeartbeat periodically writes a keep-alive to every open stream. Streams
// whose client vanished fail the write and get cleaned up.
type CronHeartbeat struct {
	cron *cron.Cron
	spec string
	hub  heartbeater
	log  logger.Logger
}

func NewCronHeartbeat(spec string, hub heartbeater, log logger.Logger) *CronHeartbeat {
	return &CronHeartbeat{
		cron: cron.New(cron.WithSeconds()),
		spec: spec,
		hub:  hub,
		log:  log,
	}
}

func (h *CronHeartbeat) Start(ctx context.Context) error {
	h.log.Info("Starting stream heartbeat", "spec", h.spec)

	_, err := h.cron.AddFunc(h.spec, h.beat)
	if err != nil {
		return err
	}

	h.cron.Start()
	go func() {
		<-ctx.Done()
		h.Stop()
	}()
	return nil
}

// Stop halts the schedule and waits for a running beat to finish.
func (h *CronHeartbeat) Stop() {
	<-h.cron.Stop().Done()
}

func (h *CronHeartbeat) beat() {
	n := h.hub.Heartbeat()
	h.log.Debug("Heartbeat queued", "connections", n)
}
