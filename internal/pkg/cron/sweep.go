package cron

import (
	"context"
	"time"

	"github.com/codetrial/broker-backend-go/internal/domain/invitation"
)

// DeadlineSweep periodically expires invitations whose governing
// deadline has passed. Lazy checks at access time are authoritative;
// the sweep keeps listings honest for invitations nobody touches.
type DeadlineSweep struct {
	broker   invitation.BrokerService
	interval time.Duration
}

// NewDeadlineSweep creates the sweep job
func NewDeadlineSweep(broker invitation.BrokerService, interval time.Duration) *DeadlineSweep {
	if interval <= 0 {
		interval = time.Minute
	}
	return &DeadlineSweep{broker: broker, interval: interval}
}

// RegisterJobs registers the sweep with the scheduler
func (d *DeadlineSweep) RegisterJobs(scheduler *Scheduler) {
	scheduler.AddJob("expire_overdue_invitations", d.interval, d.Run)
}

// Run performs one sweep. The broker logs the expiry count itself.
func (d *DeadlineSweep) Run(ctx context.Context) error {
	_, err := d.broker.ExpireOverdue(ctx)
	return err
}
