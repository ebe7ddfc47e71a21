package repository

import (
	"ShortReach-Backend/internal/domain"
	"context"
	"errors"
	"time"
)

var (
	// ErrCodeNotFound means no active row matches the code. Callers decide
	// whether this is an error: for resolve it is a normal outcome.
	ErrCodeNotFound = errors.New("short code not found")

	// ErrCodeExists means an insert lost the uniqueness race on an active code.
	// Retryable from the caller's point of view.
	ErrCodeExists = errors.New("short code already exists")
)

// Storage is the persistence contract for short links and their click events.
type Storage interface {
	// Link lifecycle
	SaveLink(ctx context.Context, link *domain.ShortLink) error
	GetActiveLinkByCode(ctx context.Context, code string) (*domain.ShortLink, error)
	GetLinkByID(ctx context.Context, id int64) (*domain.ShortLink, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	ListOwnerLinks(ctx context.Context, ownerID string, limit int) ([]*domain.ShortLink, error)
	ListEntityLinks(ctx context.Context, entityID string) ([]*domain.ShortLink, error)
	DeactivateLink(ctx context.Context, id int64) error
	ReactivateLink(ctx context.Context, id int64, expiresAt time.Time) error
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)

	// Click tracking
	RecordClick(ctx context.Context, id int64, clickedAt time.Time) error
	SaveClickEvent(ctx context.Context, event *domain.ClickEvent) error

	// Click event aggregation
	CountClickEvents(ctx context.Context, linkID int64) (int64, error)
	CountDistinctIPs(ctx context.Context, linkID int64) (int64, error)
	CountClickEventsSince(ctx context.Context, linkID int64, since time.Time) (int64, error)
	TopReferrers(ctx context.Context, linkID int64, limit int) ([]domain.ReferrerCount, error)
	ClicksByDevice(ctx context.Context, linkID int64) (map[string]int64, error)
}
