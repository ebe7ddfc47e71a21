package memory

import (
	"ShortReach-Backend/internal/domain"
	"ShortReach-Backend/internal/repository"
	"context"
	"sort"
	"sync"
	"time"
)

// MemStorage is an in-memory repository.Storage used by tests and local runs.
type MemStorage struct {
	mu      sync.RWMutex
	links   map[int64]*domain.ShortLink
	clicks  []*domain.ClickEvent
	counter int64
}

func New() *MemStorage {
	return &MemStorage{
		links: make(map[int64]*domain.ShortLink),
	}
}

// --- Link Lifecycle ---

func (s *MemStorage) SaveLink(_ context.Context, link *domain.ShortLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.links {
		if existing.IsActive && existing.Code == link.Code {
			return repository.ErrCodeExists
		}
	}

	s.counter++
	link.ID = s.counter
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now()
	}

	cp := *link
	s.links[link.ID] = &cp
	return nil
}

func (s *MemStorage) GetActiveLinkByCode(_ context.Context, code string) (*domain.ShortLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, link := range s.links {
		if link.IsActive && link.Code == code {
			cp := *link
			return &cp, nil
		}
	}
	return nil, repository.ErrCodeNotFound
}

func (s *MemStorage) GetLinkByID(_ context.Context, id int64) (*domain.ShortLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	link, ok := s.links[id]
	if !ok {
		return nil, repository.ErrCodeNotFound
	}
	cp := *link
	return &cp, nil
}

func (s *MemStorage) CodeExists(_ context.Context, code string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, link := range s.links {
		if link.IsActive && link.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemStorage) ListOwnerLinks(_ context.Context, ownerID string, limit int) ([]*domain.ShortLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.ShortLink
	for _, link := range s.links {
		if link.IsActive && link.OwnerID == ownerID {
			cp := *link
			out = append(out, &cp)
		}
	}
	sortNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemStorage) ListEntityLinks(_ context.Context, entityID string) ([]*domain.ShortLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.ShortLink
	for _, link := range s.links {
		if link.IsActive && link.EntityID != nil && *link.EntityID == entityID {
			cp := *link
			out = append(out, &cp)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *MemStorage) DeactivateLink(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if link, ok := s.links[id]; ok {
		link.IsActive = false
	}
	// Absent row: the desired end state already holds.
	return nil
}

func (s *MemStorage) ReactivateLink(_ context.Context, id int64, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	link, ok := s.links[id]
	if !ok {
		return repository.ErrCodeNotFound
	}
	link.IsActive = true
	exp := expiresAt
	link.ExpiresAt = &exp
	return nil
}

func (s *MemStorage) DeactivateExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for _, link := range s.links {
		if link.IsActive && link.Expired(now) {
			link.IsActive = false
			count++
		}
	}
	return count, nil
}

// --- Click Tracking ---

func (s *MemStorage) RecordClick(_ context.Context, id int64, clickedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	link, ok := s.links[id]
	if !ok {
		return repository.ErrCodeNotFound
	}
	link.ClickCount++
	at := clickedAt
	link.LastClickedAt = &at
	return nil
}

func (s *MemStorage) SaveClickEvent(_ context.Context, event *domain.ClickEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *event
	cp.ID = int64(len(s.clicks) + 1)
	s.clicks = append(s.clicks, &cp)
	return nil
}

// --- Click Event Aggregation ---

func (s *MemStorage) CountClickEvents(_ context.Context, linkID int64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, c := range s.clicks {
		if c.ShortLinkID == linkID {
			count++
		}
	}
	return count, nil
}

func (s *MemStorage) CountDistinctIPs(_ context.Context, linkID int64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, c := range s.clicks {
		if c.ShortLinkID == linkID && c.IPAddress != nil {
			seen[*c.IPAddress] = struct{}{}
		}
	}
	return int64(len(seen)), nil
}

func (s *MemStorage) CountClickEventsSince(_ context.Context, linkID int64, since time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, c := range s.clicks {
		if c.ShortLinkID == linkID && !c.ClickedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (s *MemStorage) TopReferrers(_ context.Context, linkID int64, limit int) ([]domain.ReferrerCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byReferrer := make(map[string]int64)
	for _, c := range s.clicks {
		if c.ShortLinkID == linkID && c.Referrer != nil && *c.Referrer != "" {
			byReferrer[*c.Referrer]++
		}
	}

	out := make([]domain.ReferrerCount, 0, len(byReferrer))
	for ref, count := range byReferrer {
		out = append(out, domain.ReferrerCount{Referrer: ref, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Referrer < out[j].Referrer
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemStorage) ClicksByDevice(_ context.Context, linkID int64) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byDevice := make(map[string]int64)
	for _, c := range s.clicks {
		if c.ShortLinkID == linkID {
			device := c.DeviceType
			if device == "" {
				device = "unknown"
			}
			byDevice[device]++
		}
	}
	return byDevice, nil
}

func sortNewestFirst(links []*domain.ShortLink) {
	sort.Slice(links, func(i, j int) bool {
		if links[i].CreatedAt.Equal(links[j].CreatedAt) {
			return links[i].ID > links[j].ID
		}
		return links[i].CreatedAt.After(links[j].CreatedAt)
	})
}
