package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/robfig/cron/v3"

	"authgate/core/utils"
)

// Sweeper deletes expired session rows on a cron schedule. Only the sql
// session backend needs it; kv backends expire entries on their own.
type Sweeper struct {
	db     *sql.DB
	cron   *cron.Cron
	logger *utils.Logger
}

func NewSweeper(db *sql.DB, schedule string, logger *utils.Logger) (*Sweeper, error) {
	s := &Sweeper{db: db, cron: cron.New(), logger: logger}
	_, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		n, err := s.SweepNow(ctx)
		if err != nil {
			if s.logger != nil {
				s.logger.Errorf("session sweep failed: %v", err)
			}
			return
		}
		if n > 0 && s.logger != nil {
			s.logger.Printf("session sweep removed %d expired sessions", n)
		}
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// SweepNow deletes every expired session row and reports how many went away.
func (s *Sweeper) SweepNow(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Sweeper) Start() {
	s.cron.Start()
}

func (s *Sweeper) Stop() {
	s.cron.Stop()
}
