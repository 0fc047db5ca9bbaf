package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/adityar2309/Vehicle-Parking-App/internal/domain"
	"github.com/adityar2309/Vehicle-Parking-App/internal/models"
	"github.com/adityar2309/Vehicle-Parking-App/internal/service"

	"github.com/rs/zerolog"
)

// SheetsReporter publishes the daily report to the shared spreadsheet.
type SheetsReporter interface {
	AppendDailyReport(ctx context.Context, day time.Time, reservations []*models.Reservation) error
	ReplaceDetailSheet(ctx context.Context, reservations []*models.Reservation) error
}

// Scheduler runs the periodic chores: sweeping expired export
// artifacts, nudging inactive users, pushing the daily report and
// sending each user a monthly usage summary.
type Scheduler struct {
	repo          domain.Storage
	exports       *service.ExportService
	users         *service.UserService
	notifier      domain.Notifier
	sheets        SheetsReporter
	sweepInterval time.Duration
	reminderTime  string
	reportTime    string
	logger        *zerolog.Logger
}

func New(repo domain.Storage, exports *service.ExportService, users *service.UserService, notifier domain.Notifier, sheets SheetsReporter, sweepInterval time.Duration, reminderTime, reportTime string, logger *zerolog.Logger) *Scheduler {
	if sweepInterval <= 0 {
		sweepInterval = time.Hour
	}
	return &Scheduler{
		repo:          repo,
		exports:       exports,
		users:         users,
		notifier:      notifier,
		sheets:        sheets,
		sweepInterval: sweepInterval,
		reminderTime:  reminderTime,
		reportTime:    reportTime,
		logger:        logger,
	}
}

// Start launches the chore loops and blocks until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	go s.runSweep(ctx)
	if s.notifier != nil && s.reminderTime != "" {
		go s.runDaily(ctx, s.reminderTime, "reminders", s.sendReminders)
		go s.runDaily(ctx, s.reminderTime, "monthly report", s.sendMonthlyReports)
	}
	if s.sheets != nil && s.reportTime != "" {
		go s.runDaily(ctx, s.reportTime, "sheets report", s.pushDailyReport)
	}
	<-ctx.Done()
}

func (s *Scheduler) runSweep(ctx context.Context) {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.exports.SweepExpired(ctx); err != nil {
				s.logger.Error().Err(err).Msg("export sweep error")
			}
		}
	}
}

// runDaily fires task once a day at the configured local time.
func (s *Scheduler) runDaily(ctx context.Context, at, name string, task func(ctx context.Context) error) {
	for {
		next, err := nextRun(at, time.Now())
		if err != nil {
			s.logger.Error().Err(err).Str("task", name).Str("at", at).Msg("invalid schedule time")
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Until(next)):
		}

		if err := task(ctx); err != nil {
			s.logger.Error().Err(err).Str("task", name).Msg("scheduled task error")
		}
	}
}

// nextRun returns the next occurrence of the "15:04" wall-clock time
// strictly after now.
func nextRun(at string, now time.Time) (time.Time, error) {
	t, err := time.Parse("15:04", at)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse schedule time %q: %w", at, err)
	}
	next := time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next, nil
}

func (s *Scheduler) sendReminders(ctx context.Context) error {
	users, err := s.users.InactiveUsers(ctx)
	if err != nil {
		return err
	}

	sent := 0
	for _, user := range users {
		msg := fmt.Sprintf("👋 Hi %s! It has been a while since your last parking. Open the app to check spot availability near you.", user.Username)
		if err := s.notifier.Notify(ctx, user.ChatID, msg); err != nil {
			s.logger.Error().Err(err).Int64("user_id", user.ID).Msg("reminder send error")
			continue
		}
		s.recordReminder(ctx, user.ID)
		sent++
	}

	s.logger.Info().Int("sent", sent).Int("candidates", len(users)).Msg("Inactivity reminders done")
	return nil
}

func (s *Scheduler) recordReminder(ctx context.Context, userID int64) {
	err := s.repo.RecordActivity(ctx, &models.Activity{
		UserID:    userID,
		Type:      models.ActivityReminderSent,
		Data:      "inactivity reminder",
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("record reminder activity error")
	}
}

// sendMonthlyReports is scheduled daily but only does work on the
// first day of the month, summarizing the previous calendar month.
func (s *Scheduler) sendMonthlyReports(ctx context.Context) error {
	now := time.Now().UTC()
	if now.Day() != 1 {
		return nil
	}
	return s.pushMonthlyReports(ctx, now)
}

func (s *Scheduler) pushMonthlyReports(ctx context.Context, now time.Time) error {
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
	monthEnd := monthStart.AddDate(0, 1, 0)

	reservations, err := s.repo.GetClosedReservationsByDateRange(ctx, monthStart, monthEnd)
	if err != nil {
		return err
	}

	type usage struct {
		count int
		spent float64
		lots  map[string]int
	}
	perUser := make(map[int64]*usage)
	for _, res := range reservations {
		u := perUser[res.UserID]
		if u == nil {
			u = &usage{lots: make(map[string]int)}
			perUser[res.UserID] = u
		}
		u.count++
		if res.Cost != nil {
			u.spent += *res.Cost
		}
		u.lots[res.LotName]++
	}

	sent := 0
	for userID, u := range perUser {
		user, err := s.repo.GetUser(ctx, userID)
		if err != nil {
			s.logger.Error().Err(err).Int64("user_id", userID).Msg("monthly report user lookup error")
			continue
		}
		if user.ChatID == 0 {
			continue
		}

		topLot := ""
		topCount := 0
		for lot, n := range u.lots {
			if n > topCount {
				topLot, topCount = lot, n
			}
		}

		msg := fmt.Sprintf("📊 Your parking in %s: %d reservations, $%.2f spent, most used lot %s.",
			monthStart.Format("January 2006"), u.count, u.spent, topLot)
		if err := s.notifier.Notify(ctx, user.ChatID, msg); err != nil {
			s.logger.Error().Err(err).Int64("user_id", userID).Msg("monthly report send error")
			continue
		}
		sent++
	}

	s.logger.Info().Str("month", monthStart.Format("2006-01")).Int("sent", sent).Int("users", len(perUser)).Msg("Monthly usage reports done")
	return nil
}

func (s *Scheduler) pushDailyReport(ctx context.Context) error {
	now := time.Now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	dayEnd := dayStart.AddDate(0, 0, 1)

	reservations, err := s.repo.GetClosedReservationsByDateRange(ctx, dayStart, dayEnd)
	if err != nil {
		return err
	}

	if err := s.sheets.AppendDailyReport(ctx, dayStart, reservations); err != nil {
		return err
	}
	if err := s.sheets.ReplaceDetailSheet(ctx, reservations); err != nil {
		return err
	}

	s.logger.Info().Str("day", dayStart.Format("2006-01-02")).Int("reservations", len(reservations)).Msg("Daily sheets report pushed")
	return nil
}
