package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/domain"
	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/infrastructure/keylock"
	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/ports"
)

const chargerLockNamespace = "reservation:charger:"

type ReservationRepository struct {
	db    *gorm.DB
	locks *keylock.KeyedMutex
	log   *zap.Logger
}

func NewReservationRepository(db *gorm.DB, log *zap.Logger) *ReservationRepository {
	return &ReservationRepository{
		db:    db,
		locks: keylock.New(),
		log:   log,
	}
}

func (r *ReservationRepository) Create(ctx context.Context, res *domain.Reservation) error {
	if err := r.db.WithContext(ctx).Create(res).Error; err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}
	return nil
}

func (r *ReservationRepository) Update(ctx context.Context, res *domain.Reservation) error {
	return r.db.WithContext(ctx).Save(res).Error
}

func (r *ReservationRepository) FindByID(ctx context.Context, id string) (*domain.Reservation, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *ReservationRepository) FindByQRToken(ctx context.Context, token string) (*domain.Reservation, error) {
	return r.first(ctx, "qr_token = ?", token)
}

func (r *ReservationRepository) FindBySessionID(ctx context.Context, sessionID string) (*domain.Reservation, error) {
	return r.first(ctx, "session_id = ?", sessionID)
}

func (r *ReservationRepository) first(ctx context.Context, query string, args ...interface{}) (*domain.Reservation, error) {
	var res domain.Reservation
	err := r.db.WithContext(ctx).Where(query, args...).First(&res).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &res, nil
}

func (r *ReservationRepository) FindByUserID(ctx context.Context, userID string) ([]domain.Reservation, error) {
	var list []domain.Reservation
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("reserved_start_time desc").Find(&list).Error
	return list, err
}

func (r *ReservationRepository) FindOverlapping(ctx context.Context, chargerID string, start, end time.Time) ([]domain.Reservation, error) {
	var list []domain.Reservation
	err := r.db.WithContext(ctx).
		Where("charger_id = ? AND status IN ?", chargerID, domain.BlockingReservationStatuses).
		Where("reserved_start_time < ? AND reserved_end_time > ?", end, start).
		Order("reserved_start_time").
		Find(&list).Error
	return list, err
}

func (r *ReservationRepository) FindDueForReminder(ctx context.Context, from, to time.Time) ([]domain.Reservation, error) {
	var list []domain.Reservation
	err := r.db.WithContext(ctx).
		Where("status = ? AND reminder_sent = ?", domain.ReservationStatusConfirmed, false).
		Where("reserved_start_time >= ? AND reserved_start_time <= ?", from, to).
		Order("reserved_start_time").
		Find(&list).Error
	return list, err
}

func (r *ReservationRepository) FindNoShowCandidates(ctx context.Context, cutoff time.Time) ([]domain.Reservation, error) {
	var list []domain.Reservation
	err := r.db.WithContext(ctx).
		Where("status = ? AND is_checked_in = ?", domain.ReservationStatusConfirmed, false).
		Where("reserved_start_time < ?", cutoff).
		Order("reserved_start_time").
		Find(&list).Error
	return list, err
}

func (r *ReservationRepository) CountNoShowsByUser(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&domain.Reservation{}).
		Where("user_id = ? AND status = ?", userID, domain.ReservationStatusNoShow).
		Count(&n).Error
	return n, err
}

func (r *ReservationRepository) MarkReminderSent(ctx context.Context, id string, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&domain.Reservation{}).
		Where("id = ? AND status = ? AND reminder_sent = ?", id, domain.ReservationStatusConfirmed, false).
		Updates(map[string]interface{}{
			"reminder_sent":    true,
			"reminder_sent_at": at,
			"updated_at":       at,
		})
	if result.Error != nil {
		return false, fmt.Errorf("mark reminder sent: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (r *ReservationRepository) MarkNoShow(ctx context.Context, id string, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&domain.Reservation{}).
		Where("id = ? AND status = ? AND is_checked_in = ?", id, domain.ReservationStatusConfirmed, false).
		Updates(map[string]interface{}{
			"status":                  domain.ReservationStatusNoShow,
			"no_show_count":           gorm.Expr("no_show_count + 1"),
			"no_show_penalty_applied": true,
			"updated_at":              at,
		})
	if result.Error != nil {
		return false, fmt.Errorf("mark no-show: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

// WithChargerLock serialises fn per charger. In-process callers queue on a keyed
// mutex; across processes PostgreSQL's transaction-scoped advisory lock does the
// same, and is released when the transaction ends.
func (r *ReservationRepository) WithChargerLock(ctx context.Context, chargerID string, fn func(ctx context.Context, repo ports.ReservationRepository) error) error {
	unlock := r.locks.Lock(chargerID)
	defer unlock()

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if tx.Dialector.Name() == "postgres" {
			if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", chargerLockNamespace+chargerID).Error; err != nil {
				return fmt.Errorf("acquire charger lock: %w", err)
			}
		}
		return fn(ctx, &ReservationRepository{db: tx, locks: r.locks, log: r.log})
	})
}
