package postgres

import (
	"ShortReach-Backend/internal/domain"
	"ShortReach-Backend/internal/repository"
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PostgresStorage implements repository.Storage on top of GORM/PostgreSQL.
type PostgresStorage struct {
	db  *gorm.DB
	log *zap.Logger
}

// New creates a PostgreSQL-backed storage.
func New(db *gorm.DB, log *zap.Logger) *PostgresStorage {
	return &PostgresStorage{
		db:  db,
		log: log,
	}
}

// --- Link Lifecycle ---

// SaveLink inserts a new short link. A uniqueness violation on the active
// code index surfaces as repository.ErrCodeExists so the caller can retry.
func (s *PostgresStorage) SaveLink(ctx context.Context, link *domain.ShortLink) error {
	if err := s.db.WithContext(ctx).Create(link).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return repository.ErrCodeExists
		}
		s.log.Error("failed to save short link", zap.String("code", link.Code), zap.Error(err))
		return fmt.Errorf("failed to save short link: %w", err)
	}

	s.log.Info("saved short link", zap.String("code", link.Code), zap.String("owner_id", link.OwnerID))
	return nil
}

// GetActiveLinkByCode fetches the active row for a code. Expiration is not
// applied here; the service owns the lazy-deactivation rule.
func (s *PostgresStorage) GetActiveLinkByCode(ctx context.Context, code string) (*domain.ShortLink, error) {
	var link domain.ShortLink

	err := s.db.WithContext(ctx).Where("code = ? AND is_active = ?", code, true).First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrCodeNotFound
	}
	if err != nil {
		s.log.Error("failed to get link by code", zap.String("code", code), zap.Error(err))
		return nil, fmt.Errorf("failed to get link: %w", err)
	}

	return &link, nil
}

func (s *PostgresStorage) GetLinkByID(ctx context.Context, id int64) (*domain.ShortLink, error) {
	var link domain.ShortLink

	err := s.db.WithContext(ctx).First(&link, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrCodeNotFound
	}
	if err != nil {
		s.log.Error("failed to get link by id", zap.Int64("link_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get link: %w", err)
	}

	return &link, nil
}

// CodeExists checks active rows only: deactivated codes are eligible for reuse.
func (s *PostgresStorage) CodeExists(ctx context.Context, code string) (bool, error) {
	var count int64

	err := s.db.WithContext(ctx).Model(&domain.ShortLink{}).
		Where("code = ? AND is_active = ?", code, true).Count(&count).Error
	if err != nil {
		s.log.Error("failed to check code existence", zap.String("code", code), zap.Error(err))
		return false, fmt.Errorf("failed to check code: %w", err)
	}

	return count > 0, nil
}

func (s *PostgresStorage) ListOwnerLinks(ctx context.Context, ownerID string, limit int) ([]*domain.ShortLink, error) {
	var links []*domain.ShortLink

	q := s.db.WithContext(ctx).Where("owner_id = ? AND is_active = ?", ownerID, true).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&links).Error; err != nil {
		s.log.Error("failed to list owner links", zap.String("owner_id", ownerID), zap.Error(err))
		return nil, fmt.Errorf("failed to list owner links: %w", err)
	}

	return links, nil
}

func (s *PostgresStorage) ListEntityLinks(ctx context.Context, entityID string) ([]*domain.ShortLink, error) {
	var links []*domain.ShortLink

	err := s.db.WithContext(ctx).Where("entity_id = ? AND is_active = ?", entityID, true).
		Order("created_at DESC").Find(&links).Error
	if err != nil {
		s.log.Error("failed to list entity links", zap.String("entity_id", entityID), zap.Error(err))
		return nil, fmt.Errorf("failed to list entity links: %w", err)
	}

	return links, nil
}

// DeactivateLink soft-deletes a link. An unknown or already-inactive id is
// treated as success: the desired end state already holds.
func (s *PostgresStorage) DeactivateLink(ctx context.Context, id int64) error {
	result := s.db.WithContext(ctx).Model(&domain.ShortLink{}).
		Where("id = ?", id).Update("is_active", false)
	if result.Error != nil {
		s.log.Error("failed to deactivate link", zap.Int64("link_id", id), zap.Error(result.Error))
		return fmt.Errorf("failed to deactivate link: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		s.log.Info("deactivated link", zap.Int64("link_id", id))
	}
	return nil
}

// ReactivateLink restores an expired or soft-deleted link with a new expiry.
func (s *PostgresStorage) ReactivateLink(ctx context.Context, id int64, expiresAt time.Time) error {
	result := s.db.WithContext(ctx).Model(&domain.ShortLink{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"is_active": true, "expires_at": expiresAt})
	if result.Error != nil {
		s.log.Error("failed to reactivate link", zap.Int64("link_id", id), zap.Error(result.Error))
		return fmt.Errorf("failed to reactivate link: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrCodeNotFound
	}

	s.log.Info("reactivated link", zap.Int64("link_id", id), zap.Time("expires_at", expiresAt))
	return nil
}

// DeactivateExpired is the batch sweep: every active row with an expiry in
// the past is deactivated in one statement.
func (s *PostgresStorage) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Model(&domain.ShortLink{}).
		Where("is_active = ? AND expires_at IS NOT NULL AND expires_at < ?", true, now).
		Update("is_active", false)
	if result.Error != nil {
		s.log.Error("failed to deactivate expired links", zap.Error(result.Error))
		return 0, fmt.Errorf("failed to deactivate expired links: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		s.log.Info("deactivated expired links", zap.Int64("count", result.RowsAffected))
	}
	return result.RowsAffected, nil
}

// --- Click Tracking ---

// RecordClick bumps the click counter atomically and stamps last_clicked_at.
// gorm.Expr keeps the increment in the database so concurrent clicks do not
// lose updates.
func (s *PostgresStorage) RecordClick(ctx context.Context, id int64, clickedAt time.Time) error {
	err := s.db.WithContext(ctx).Model(&domain.ShortLink{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"click_count":     gorm.Expr("click_count + 1"),
			"last_clicked_at": clickedAt,
		}).Error
	if err != nil {
		s.log.Error("failed to record click", zap.Int64("link_id", id), zap.Error(err))
		return fmt.Errorf("failed to record click: %w", err)
	}

	return nil
}

func (s *PostgresStorage) SaveClickEvent(ctx context.Context, event *domain.ClickEvent) error {
	if err := s.db.WithContext(ctx).Create(event).Error; err != nil {
		s.log.Error("failed to save click event", zap.Int64("link_id", event.ShortLinkID), zap.Error(err))
		return fmt.Errorf("failed to save click event: %w", err)
	}

	return nil
}

// --- Click Event Aggregation ---

func (s *PostgresStorage) CountClickEvents(ctx context.Context, linkID int64) (int64, error) {
	var count int64

	err := s.db.WithContext(ctx).Model(&domain.ClickEvent{}).
		Where("short_link_id = ?", linkID).Count(&count).Error
	if err != nil {
		s.log.Error("failed to count click events", zap.Int64("link_id", linkID), zap.Error(err))
		return 0, fmt.Errorf("failed to count click events: %w", err)
	}

	return count, nil
}

func (s *PostgresStorage) CountDistinctIPs(ctx context.Context, linkID int64) (int64, error) {
	var count int64

	err := s.db.WithContext(ctx).Model(&domain.ClickEvent{}).
		Where("short_link_id = ? AND ip_address IS NOT NULL", linkID).
		Distinct("ip_address").Count(&count).Error
	if err != nil {
		s.log.Error("failed to count distinct ips", zap.Int64("link_id", linkID), zap.Error(err))
		return 0, fmt.Errorf("failed to count distinct ips: %w", err)
	}

	return count, nil
}

func (s *PostgresStorage) CountClickEventsSince(ctx context.Context, linkID int64, since time.Time) (int64, error) {
	var count int64

	err := s.db.WithContext(ctx).Model(&domain.ClickEvent{}).
		Where("short_link_id = ? AND clicked_at >= ?", linkID, since).Count(&count).Error
	if err != nil {
		s.log.Error("failed to count recent click events", zap.Int64("link_id", linkID), zap.Error(err))
		return 0, fmt.Errorf("failed to count recent click events: %w", err)
	}

	return count, nil
}

func (s *PostgresStorage) TopReferrers(ctx context.Context, linkID int64, limit int) ([]domain.ReferrerCount, error) {
	var results []domain.ReferrerCount

	err := s.db.WithContext(ctx).Model(&domain.ClickEvent{}).
		Select("referrer, count(*) as count").
		Where("short_link_id = ? AND referrer IS NOT NULL AND referrer <> ''", linkID).
		Group("referrer").
		Order("count DESC, referrer ASC").
		Limit(limit).
		Find(&results).Error
	if err != nil {
		s.log.Error("failed to get top referrers", zap.Int64("link_id", linkID), zap.Error(err))
		return nil, fmt.Errorf("failed to get top referrers: %w", err)
	}

	return results, nil
}

func (s *PostgresStorage) ClicksByDevice(ctx context.Context, linkID int64) (map[string]int64, error) {
	var results []struct {
		DeviceType string `gorm:"column:device_type"`
		Count      int64  `gorm:"column:count"`
	}

	err := s.db.WithContext(ctx).Model(&domain.ClickEvent{}).
		Select("COALESCE(device_type, 'unknown') as device_type, count(*) as count").
		Where("short_link_id = ?", linkID).
		Group("device_type").
		Find(&results).Error
	if err != nil {
		s.log.Error("failed to get clicks by device", zap.Int64("link_id", linkID), zap.Error(err))
		return nil, fmt.Errorf("failed to get clicks by device: %w", err)
	}

	clicksByDevice := make(map[string]int64, len(results))
	for _, r := range results {
		clicksByDevice[r.DeviceType] = r.Count
	}

	return clicksByDevice, nil
}
