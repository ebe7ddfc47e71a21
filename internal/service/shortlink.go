package service

import (
	"ShortReach-Backend/internal/config"
	"ShortReach-Backend/internal/domain"
	"ShortReach-Backend/internal/repository"
	"ShortReach-Backend/pkg/base62"
	"ShortReach-Backend/pkg/useragent"
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// ErrInvalidURL is returned when a destination fails absolute-URL validation.
var ErrInvalidURL = errors.New("invalid destination url")

const statsWindow = 30 * 24 * time.Hour

// TrackResult makes the best-effort nature of click tracking explicit in the
// signature: callers consume it for logging and metrics only, never for
// control flow on the redirect path.
type TrackResult int

const (
	Tracked TrackResult = iota
	TrackingFailed
)

func (r TrackResult) String() string {
	if r == Tracked {
		return "tracked"
	}
	return "tracking_failed"
}

// CreateLinkInput carries everything needed to mint a new short link.
type CreateLinkInput struct {
	DestinationURL string
	OwnerID        string
	CustomCode     string
	Entity         *domain.AssociatedEntity
	Title          string
	Description    string
	Variant        string
	ExpiresInDays  int // positive sets an expiry, anything else means none
}

// ClickMetadata is the request context captured for a resolved visit.
type ClickMetadata struct {
	UserAgent string
	IPAddress string
	Referrer  string
}

// LinkStats is the aggregated click picture for one link. In counter-only
// mode UniqueIPs is unknown (0), Last30DaysClicks approximates to the total
// and the referrer/device breakdowns are empty.
type LinkStats struct {
	TotalClicks      int64                  `json:"total_clicks"`
	UniqueIPs        int64                  `json:"unique_ips"`
	Last30DaysClicks int64                  `json:"last_30_days_clicks"`
	TopReferrers     []domain.ReferrerCount `json:"top_referrers"`
	DeviceBreakdown  map[string]int64       `json:"device_breakdown"`
}

// ShortLinkService owns persistence-backed operations over short links and
// their click events; the base62 generator is its pure, stateless collaborator.
type ShortLinkService struct {
	storage repository.Storage
	parser  *useragent.Parser
	config  *config.ShortLink
	log     *zap.Logger

	now func() time.Time
}

// New constructs the service. The parser may be nil; tracking then falls
// back to keyword device detection.
func New(storage repository.Storage, parser *useragent.Parser, cfg *config.ShortLink, log *zap.Logger) *ShortLinkService {
	return &ShortLinkService{
		storage: storage,
		parser:  parser,
		config:  cfg,
		log:     log,
		now:     time.Now,
	}
}

// Create validates the destination, issues a collision-checked code (or
// accepts a normalized custom one) and persists the new link.
func (s *ShortLinkService) Create(ctx context.Context, in CreateLinkInput) (*domain.ShortLink, error) {
	if err := validateDestinationURL(in.DestinationURL); err != nil {
		return nil, err
	}

	var code string
	if in.CustomCode != "" {
		normalized, err := base62.NormalizeCustomCode(in.CustomCode)
		if err != nil {
			return nil, err
		}
		taken, err := s.storage.CodeExists(ctx, normalized)
		if err != nil {
			return nil, fmt.Errorf("failed to check custom code: %w", err)
		}
		if taken {
			return nil, repository.ErrCodeExists
		}
		code = normalized
	} else {
		var err error
		code, err = base62.GenerateUniqueCode(ctx, s.storage.CodeExists, s.config.MaxGenerationAttempts)
		if err != nil {
			return nil, err
		}
	}

	now := s.now()
	link := &domain.ShortLink{
		Code:           code,
		DestinationURL: in.DestinationURL,
		OwnerID:        in.OwnerID,
		CreatedAt:      now,
		IsActive:       true,
	}
	if in.ExpiresInDays > 0 {
		expiresAt := now.AddDate(0, 0, in.ExpiresInDays)
		link.ExpiresAt = &expiresAt
	}
	if in.Entity != nil {
		link.EntityID = &in.Entity.EntityID
		if in.Entity.EntityKind != "" {
			link.EntityKind = &in.Entity.EntityKind
		}
		if in.Entity.SubTag != "" {
			link.SubTag = &in.Entity.SubTag
		}
	}
	link.Title = optional(in.Title)
	link.Description = optional(in.Description)
	link.Variant = optional(in.Variant)

	if err := s.storage.SaveLink(ctx, link); err != nil {
		// A concurrent creation may win the same code between the existence
		// check and the insert; the unique index catches it and the caller
		// may retry.
		return nil, fmt.Errorf("failed to save link: %w", err)
	}

	s.log.Info("created short link",
		zap.String("code", link.Code),
		zap.String("owner_id", link.OwnerID))
	return link, nil
}

// Resolve returns the active link for a code, or (nil, nil) when the code is
// unknown or expired: not found is a normal outcome, not an error. An
// expired row is deactivated as a side effect (lazy deactivation).
func (s *ShortLinkService) Resolve(ctx context.Context, code string) (*domain.ShortLink, error) {
	link, err := s.storage.GetActiveLinkByCode(ctx, code)
	if errors.Is(err, repository.ErrCodeNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve code: %w", err)
	}

	if link.Expired(s.now()) {
		if err := s.storage.DeactivateLink(ctx, link.ID); err != nil {
			// The batch sweep will catch it; resolution still hides the link.
			s.log.Warn("failed to deactivate expired link on read",
				zap.Int64("link_id", link.ID), zap.Error(err))
		}
		return nil, nil
	}

	return link, nil
}

// TrackClick records a visit: the counter bump and last-clicked timestamp
// always, a detailed ClickEvent row when the feature is enabled. Every
// failure is logged and swallowed so tracking can never break the redirect.
func (s *ShortLinkService) TrackClick(ctx context.Context, linkID int64, meta ClickMetadata) TrackResult {
	now := s.now()

	result := Tracked
	if err := s.storage.RecordClick(ctx, linkID, now); err != nil {
		s.log.Warn("failed to record click", zap.Int64("link_id", linkID), zap.Error(err))
		result = TrackingFailed
	}

	if s.config.DetailedTracking {
		event := s.buildClickEvent(linkID, meta, now)
		if err := s.storage.SaveClickEvent(ctx, event); err != nil {
			s.log.Warn("failed to save click event", zap.Int64("link_id", linkID), zap.Error(err))
		}
	}

	return result
}

func (s *ShortLinkService) buildClickEvent(linkID int64, meta ClickMetadata, now time.Time) *domain.ClickEvent {
	event := &domain.ClickEvent{
		ShortLinkID: linkID,
		ClickedAt:   now,
	}

	if s.parser != nil {
		info := s.parser.Parse(meta.UserAgent)
		event.DeviceType = info.DeviceType
		event.Browser = optional(info.Browser)
		event.OS = optional(info.OS)
	} else {
		event.DeviceType = useragent.DetectDeviceType(meta.UserAgent)
	}

	event.UserAgent = optional(truncate(meta.UserAgent, domain.MetadataMaxLen))
	event.Referrer = optional(truncate(meta.Referrer, domain.MetadataMaxLen))
	event.IPAddress = optional(meta.IPAddress)

	return event
}

// ListByOwner returns the owner's active links, newest first.
func (s *ShortLinkService) ListByOwner(ctx context.Context, ownerID string, limit int) ([]*domain.ShortLink, error) {
	if limit <= 0 || limit > s.config.ListLimit {
		limit = s.config.ListLimit
	}
	links, err := s.storage.ListOwnerLinks(ctx, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list owner links: %w", err)
	}
	return links, nil
}

// ListByEntity returns active links promoting a content entity, newest first.
func (s *ShortLinkService) ListByEntity(ctx context.Context, entityID string) ([]*domain.ShortLink, error) {
	links, err := s.storage.ListEntityLinks(ctx, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to list entity links: %w", err)
	}
	return links, nil
}

// Deactivate soft-deletes a link. Idempotent: an unknown or already-inactive
// id is success, the desired end state holds either way.
func (s *ShortLinkService) Deactivate(ctx context.Context, id int64) error {
	if err := s.storage.DeactivateLink(ctx, id); err != nil {
		return fmt.Errorf("failed to deactivate link: %w", err)
	}
	return nil
}

// Refresh reactivates a link with a fresh expiry of expiresInDays (the
// configured default when not positive). Used to undelete expired links.
func (s *ShortLinkService) Refresh(ctx context.Context, id int64, expiresInDays int) (*domain.ShortLink, error) {
	if expiresInDays <= 0 {
		expiresInDays = s.config.DefaultRefreshDays
	}
	expiresAt := s.now().AddDate(0, 0, expiresInDays)

	if err := s.storage.ReactivateLink(ctx, id, expiresAt); err != nil {
		return nil, fmt.Errorf("failed to refresh link: %w", err)
	}

	link, err := s.storage.GetLinkByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load refreshed link: %w", err)
	}

	s.log.Info("refreshed link", zap.Int64("link_id", id), zap.Time("expires_at", expiresAt))
	return link, nil
}

// Stats aggregates the click picture for a link. With detailed tracking off
// only the counter fields are available: unique IPs are unknown and the
// 30-day window approximates to the lifetime total.
func (s *ShortLinkService) Stats(ctx context.Context, linkID int64) (*LinkStats, error) {
	link, err := s.storage.GetLinkByID(ctx, linkID)
	if err != nil {
		return nil, fmt.Errorf("failed to get link: %w", err)
	}

	if !s.config.DetailedTracking {
		return &LinkStats{
			TotalClicks:      link.ClickCount,
			UniqueIPs:        0,
			Last30DaysClicks: link.ClickCount,
			TopReferrers:     []domain.ReferrerCount{},
			DeviceBreakdown:  emptyDeviceBreakdown(),
		}, nil
	}

	total, err := s.storage.CountClickEvents(ctx, linkID)
	if err != nil {
		return nil, fmt.Errorf("failed to count clicks: %w", err)
	}
	uniqueIPs, err := s.storage.CountDistinctIPs(ctx, linkID)
	if err != nil {
		return nil, fmt.Errorf("failed to count unique ips: %w", err)
	}
	recent, err := s.storage.CountClickEventsSince(ctx, linkID, s.now().Add(-statsWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to count recent clicks: %w", err)
	}
	referrers, err := s.storage.TopReferrers(ctx, linkID, 5)
	if err != nil {
		return nil, fmt.Errorf("failed to get top referrers: %w", err)
	}
	byDevice, err := s.storage.ClicksByDevice(ctx, linkID)
	if err != nil {
		return nil, fmt.Errorf("failed to get device breakdown: %w", err)
	}

	breakdown := emptyDeviceBreakdown()
	for device, count := range byDevice {
		breakdown[device] = count
	}

	return &LinkStats{
		TotalClicks:      total,
		UniqueIPs:        uniqueIPs,
		Last30DaysClicks: recent,
		TopReferrers:     referrers,
		DeviceBreakdown:  breakdown,
	}, nil
}

// DeactivateExpired is the eager sweep over all active rows with a past
// expiry; it applies the same rule as the lazy path in Resolve.
func (s *ShortLinkService) DeactivateExpired(ctx context.Context) (int64, error) {
	count, err := s.storage.DeactivateExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired links: %w", err)
	}
	return count, nil
}

func validateDestinationURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	return nil
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func emptyDeviceBreakdown() map[string]int64 {
	return map[string]int64{
		useragent.DeviceMobile:  0,
		useragent.DeviceTablet:  0,
		useragent.DeviceDesktop: 0,
		useragent.DeviceUnknown: 0,
	}
}
