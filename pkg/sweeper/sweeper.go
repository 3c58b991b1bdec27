// Package sweeper reconciles expired offers in the background. The lazy
// expiry guard on the application read path stays authoritative; the sweep
// only shortens the window in which an expired offer is still visible as
// Offered to listing queries that bypass the workflow service.
package sweeper

import (
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
	"k8s.io/klog/v2"

	"github.com/raids-lab/triad/dao/model"
)

// DefaultSpec runs the sweep every ten minutes.
const DefaultSpec = "*/10 * * * *"

type Sweeper struct {
	db   *gorm.DB
	cron *cron.Cron
	spec string
}

func NewSweeper(db *gorm.DB, spec string) *Sweeper {
	if spec == "" {
		spec = DefaultSpec
	}
	return &Sweeper{
		db:   db,
		cron: cron.New(cron.WithLocation(time.Local)),
		spec: spec,
	}
}

// Start schedules the sweep and launches the cron scheduler.
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.sweepExpiredOffers); err != nil {
		return err
	}
	s.cron.Start()
	klog.Infof("offer-expiry sweeper started, spec %q", s.spec)
	return nil
}

// Stop halts the scheduler, waiting for a running sweep to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	klog.Info("offer-expiry sweeper stopped")
}

// sweepExpiredOffers bulk-declines offered applications whose offer has
// lapsed. The version bump keeps optimistic-lock holders from overwriting
// the sweep result with a stale copy.
func (s *Sweeper) sweepExpiredOffers() {
	res := s.db.Model(&model.Application{}).
		Where("status = ?", model.AppOffered).
		Where("offer_expires_at IS NOT NULL AND offer_expires_at <= ?", time.Now()).
		Updates(map[string]any{
			"status":  model.AppDeclined,
			"version": gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		klog.Errorf("sweep expired offers: %v", res.Error)
		return
	}
	if res.RowsAffected > 0 {
		klog.Infof("swept %d expired offers", res.RowsAffected)
	}
}
