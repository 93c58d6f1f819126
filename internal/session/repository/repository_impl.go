package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/observetask/identity/internal/session/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func New(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) domain.Repository {
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, s *domain.Session) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *repository) FindByTokenHash(ctx context.Context, hash string) (*domain.Session, error) {
	var s domain.Session
	err := r.db.WithContext(ctx).Where("token_hash = ?", hash).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *repository) MarkRotated(ctx context.Context, id snowflake.ID, at time.Time) error {
	tx := r.db.WithContext(ctx).Model(&domain.Session{}).
		Where("id = ? AND rotated_at IS NULL AND revoked_at IS NULL", id).
		Updates(map[string]any{"rotated_at": at, "updated_at": at})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrSessionConsumed
	}
	return nil
}

func (r *repository) Revoke(ctx context.Context, id snowflake.ID, at time.Time) error {
	return r.db.WithContext(ctx).Model(&domain.Session{}).
		Where("id = ? AND rotated_at IS NULL AND revoked_at IS NULL", id).
		Updates(map[string]any{"revoked_at": at, "updated_at": at}).Error
}

func (r *repository) RevokeAllForUser(ctx context.Context, userID snowflake.ID, at time.Time) (int64, error) {
	tx := r.db.WithContext(ctx).Model(&domain.Session{}).
		Where("user_id = ? AND rotated_at IS NULL AND revoked_at IS NULL AND expires_at > ?", userID, at).
		Updates(map[string]any{"revoked_at": at, "updated_at": at})
	return tx.RowsAffected, tx.Error
}

func (r *repository) ListActiveByUser(ctx context.Context, userID snowflake.ID, now time.Time) ([]domain.Session, error) {
	var items []domain.Session
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND rotated_at IS NULL AND revoked_at IS NULL AND expires_at > ?", userID, now).
		Order("created_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) CountActiveByUser(ctx context.Context, userID snowflake.ID, now time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Session{}).
		Where("user_id = ? AND rotated_at IS NULL AND revoked_at IS NULL AND expires_at > ?", userID, now).
		Count(&count).Error
	return count, err
}

func (r *repository) OldestActiveByUser(ctx context.Context, userID snowflake.ID, now time.Time) (*domain.Session, error) {
	var s domain.Session
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND rotated_at IS NULL AND revoked_at IS NULL AND expires_at > ?", userID, now).
		Order("created_at ASC").
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *repository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	tx := r.db.WithContext(ctx).
		Where("expires_at <= ?", cutoff).
		Delete(&domain.Session{})
	return tx.RowsAffected, tx.Error
}
