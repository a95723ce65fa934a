package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/domain"
	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/observability/telemetry"
)

var (
	errReminderNotDelivered = errors.New("reminder not delivered")
	errSkipped              = errors.New("reservation changed during tick")
)

// sendReminders notifies drivers whose reservation starts within the reminder
// window. An undelivered reminder stays unsent and is retried next tick.
func (s *Scheduler) sendReminders(ctx context.Context, report *Report) error {
	now := s.now()
	due, err := s.reservations.FindDueForReminder(ctx, now.Add(s.policy.ReminderLeadMin), now.Add(s.policy.ReminderLeadMax))
	if err != nil {
		return fmt.Errorf("find reservations due for reminder: %w", err)
	}
	report.Scanned = len(due)

	for i := range due {
		res := &due[i]
		s.isolate(JobReminder, res.ID, report, func() error {
			minutes := int(res.ReservedStartTime.Sub(now).Round(time.Minute).Minutes())
			delivered := s.notify(ctx, &domain.Notification{
				UserID:      res.UserID,
				Type:        domain.NotificationReservationReminder,
				Title:       "Upcoming reservation",
				Message:     fmt.Sprintf("Your reservation on charger %s starts in %d minutes. Confirmation code: %s.", res.ChargerID, minutes, res.ConfirmationCode),
				ReferenceID: res.ID,
			})
			if !delivered {
				return errReminderNotDelivered
			}

			marked, err := s.reservations.MarkReminderSent(ctx, res.ID, now)
			if err != nil {
				return err
			}
			if !marked {
				return errSkipped
			}
			return nil
		})
	}
	return nil
}

// expireNoShows marks confirmed reservations whose check-in deadline passed
// without a check-in. The deposit is kept as the penalty.
func (s *Scheduler) expireNoShows(ctx context.Context, report *Report) error {
	now := s.now()
	candidates, err := s.reservations.FindNoShowCandidates(ctx, now.Add(-s.policy.CheckInGracePeriod))
	if err != nil {
		return fmt.Errorf("find no-show candidates: %w", err)
	}
	report.Scanned = len(candidates)

	for i := range candidates {
		res := &candidates[i]
		s.isolate(JobNoShow, res.ID, report, func() error {
			if err := res.TransitionTo(domain.ReservationStatusNoShow, now); err != nil {
				return err
			}
			marked, err := s.reservations.MarkNoShow(ctx, res.ID, now)
			if err != nil {
				return err
			}
			if !marked {
				return errSkipped
			}
			res.NoShowCount++
			res.NoShowPenaltyApplied = true
			telemetry.ReservationsTotal.WithLabelValues("no_show", "ok").Inc()

			total, err := s.reservations.CountNoShowsByUser(ctx, res.UserID)
			if err != nil {
				s.log.Warn("Failed to count user no-shows", zap.String("user_id", res.UserID), zap.Error(err))
				total = int64(res.NoShowCount)
			}

			s.notify(ctx, &domain.Notification{
				UserID:      res.UserID,
				Type:        domain.NotificationReservationCancelled,
				Title:       "Reservation missed",
				Message:     fmt.Sprintf("You did not check in for charger %s before %s. The deposit has been retained. Missed reservations: %d.", res.ChargerID, res.CheckInDeadline.Format(time.RFC3339), total),
				ReferenceID: res.ID,
			})

			s.log.Info("Reservation marked as no-show",
				zap.String("reservation_id", res.ID),
				zap.String("user_id", res.UserID),
				zap.Int64("user_no_shows", total),
			)
			return nil
		})
	}
	return nil
}

// completeStaleSessions force-completes sessions left charging past the stale threshold
func (s *Scheduler) completeStaleSessions(ctx context.Context, report *Report) error {
	stale, err := s.sessions.FindStale(ctx, s.now().Add(-s.policy.StaleSessionAfter))
	if err != nil {
		return fmt.Errorf("find stale sessions: %w", err)
	}
	report.Scanned = len(stale)

	for i := range stale {
		session := &stale[i]
		s.isolate(JobStaleSessions, session.ID, report, func() error {
			_, err := s.completer.CompleteStaleSession(ctx, session)
			return err
		})
	}
	return nil
}

func (s *Scheduler) notify(ctx context.Context, n *domain.Notification) bool {
	n.CreatedAt = s.now()
	return s.soft.Do(ctx, "notification-dispatcher", "create_notification", func(ctx context.Context) error {
		return s.notifier.CreateNotification(ctx, n)
	}, zap.String("user_id", n.UserID), zap.String("type", string(n.Type)), zap.String("reference_id", n.ReferenceID))
}
