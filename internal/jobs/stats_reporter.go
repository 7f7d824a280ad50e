package jobs

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mi-ganesh/Document-Editor/internal/metrics"
)

// StatsSource reports the live room and connection counts.
type StatsSource interface {
	Stats() (rooms, clients int)
}

// PresenceCounter reports the number of presence entries.
type PresenceCounter interface {
	PresenceCount() int
}

// StatsReporter periodically logs room activity and refreshes the room gauge.
type StatsReporter struct {
	hub      StatsSource
	presence PresenceCounter
	log      *zap.Logger
	schedule string
	cron     *cron.Cron
}

func NewStatsReporter(hub StatsSource, presence PresenceCounter, log *zap.Logger, schedule string) *StatsReporter {
	return &StatsReporter{
		hub:      hub,
		presence: presence,
		log:      log,
		schedule: schedule,
		cron:     cron.New(),
	}
}

// Start schedules the report. An empty schedule disables the job.
func (s *StatsReporter) Start() error {
	if s.schedule == "" {
		s.log.Info("stats reporter disabled")
		return nil
	}
	if _, err := s.cron.AddFunc(s.schedule, s.Report); err != nil {
		return fmt.Errorf("failed to schedule stats reporter: %w", err)
	}
	s.cron.Start()
	s.log.Info("stats reporter started", zap.String("schedule", s.schedule))
	return nil
}

func (s *StatsReporter) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// Report logs one snapshot.
func (s *StatsReporter) Report() {
	rooms, clients := s.hub.Stats()
	presence := s.presence.PresenceCount()
	metrics.ActiveRooms.Set(float64(rooms))

	fields := []zap.Field{zap.Int("rooms", rooms), zap.Int("clients", clients), zap.Int("presence", presence)}
	if presence != clients {
		// presence and room membership are tracked separately
		s.log.Warn("room stats: presence and membership differ", fields...)
		return
	}
	s.log.Info("room stats", fields...)
}
