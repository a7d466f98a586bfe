// Package sched triggers batch price updates on an interval or on demand.
package sched

import (
	"context"
	"time"

	"github.com/robertmeta/pricewatch/logger"
	"github.com/robertmeta/pricewatch/model"
)

// BatchUpdater is the slice of the tracker the scheduler drives.
type BatchUpdater interface {
	UpdateAll() map[string]*model.ItemResult
}

// Updater runs the batch update on a fixed interval and whenever the manual
// trigger channel fires. The loop is a single goroutine, so invocations
// never overlap; the tracker itself makes no assumption about how or how
// often it is invoked.
type Updater struct {
	tracker  BatchUpdater
	log      logger.Logger
	interval time.Duration
	stopCh   chan struct{}
	trigger  chan struct{}
}

// NewUpdater creates an Updater. trigger may be nil to disable manual runs.
func NewUpdater(t BatchUpdater, log logger.Logger, interval time.Duration, trigger chan struct{}) *Updater {
	return &Updater{
		tracker:  t,
		log:      log,
		interval: interval,
		stopCh:   make(chan struct{}),
		trigger:  trigger,
	}
}

// Start begins the periodic update loop.
func (u *Updater) Start(ctx context.Context) {
	ticker := time.NewTicker(u.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				u.run()
			case <-u.trigger:
				u.log.Info("manual price update triggered")
				u.run()
			case <-u.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the update loop.
func (u *Updater) Stop() {
	close(u.stopCh)
}

func (u *Updater) run() {
	results := u.tracker.UpdateAll()
	u.log.Info("batch price update finished", logger.Int("updated", len(results)))
}
