package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/domain"
)

type SessionRepository struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewSessionRepository(db *gorm.DB, log *zap.Logger) *SessionRepository {
	return &SessionRepository{
		db:  db,
		log: log,
	}
}

// Create inserts the session. A second live session on the same charger trips
// the partial unique index and comes back as a charger_busy conflict.
func (r *SessionRepository) Create(ctx context.Context, s *domain.ChargingSession) error {
	if err := r.db.WithContext(ctx).Create(s).Error; err != nil {
		if isDuplicateKey(err) {
			return domain.NewStateConflictError(domain.ConflictChargerBusy,
				"charger %s already has a live session", s.ChargerID)
		}
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *SessionRepository) Update(ctx context.Context, s *domain.ChargingSession) error {
	return r.db.WithContext(ctx).Save(s).Error
}

func (r *SessionRepository) FindByID(ctx context.Context, id string) (*domain.ChargingSession, error) {
	var s domain.ChargingSession
	err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *SessionRepository) FindByUserID(ctx context.Context, userID string) ([]domain.ChargingSession, error) {
	var list []domain.ChargingSession
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("start_time desc").Find(&list).Error
	return list, err
}

func (r *SessionRepository) FindLiveByChargerID(ctx context.Context, chargerID string) (*domain.ChargingSession, error) {
	var s domain.ChargingSession
	err := r.db.WithContext(ctx).
		Where("charger_id = ? AND status = ?", chargerID, domain.SessionStatusCharging).
		First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *SessionRepository) FindStale(ctx context.Context, cutoff time.Time) ([]domain.ChargingSession, error) {
	var list []domain.ChargingSession
	err := r.db.WithContext(ctx).
		Where("status = ? AND start_time < ?", domain.SessionStatusCharging, cutoff).
		Order("start_time").
		Find(&list).Error
	return list, err
}
