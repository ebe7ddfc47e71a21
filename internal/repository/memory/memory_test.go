package memory

import (
	"ShortReach-Backend/internal/domain"
	"ShortReach-Backend/internal/repository"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activeLink(code string) *domain.ShortLink {
	return &domain.ShortLink{
		Code:           code,
		DestinationURL: "https://example.com",
		OwnerID:        "owner-1",
		IsActive:       true,
	}
}

func TestSaveLinkEnforcesActiveCodeUniqueness(t *testing.T) {
	s := New()
	ctx := context.Background()

	first := activeLink("abc123")
	require.NoError(t, s.SaveLink(ctx, first))
	assert.NotZero(t, first.ID)

	err := s.SaveLink(ctx, activeLink("abc123"))
	assert.ErrorIs(t, err, repository.ErrCodeExists)

	// A deactivated code is free for reuse.
	require.NoError(t, s.DeactivateLink(ctx, first.ID))
	require.NoError(t, s.SaveLink(ctx, activeLink("abc123")))
}

func TestGetActiveLinkByCode(t *testing.T) {
	s := New()
	ctx := context.Background()

	link := activeLink("abc123")
	require.NoError(t, s.SaveLink(ctx, link))

	got, err := s.GetActiveLinkByCode(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, link.ID, got.ID)

	_, err = s.GetActiveLinkByCode(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrCodeNotFound)

	require.NoError(t, s.DeactivateLink(ctx, link.ID))
	_, err = s.GetActiveLinkByCode(ctx, "abc123")
	assert.ErrorIs(t, err, repository.ErrCodeNotFound)
}

func TestRecordClick(t *testing.T) {
	s := New()
	ctx := context.Background()

	link := activeLink("abc123")
	require.NoError(t, s.SaveLink(ctx, link))

	now := time.Now()
	require.NoError(t, s.RecordClick(ctx, link.ID, now))
	require.NoError(t, s.RecordClick(ctx, link.ID, now.Add(time.Second)))

	got, err := s.GetLinkByID(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.ClickCount)
	require.NotNil(t, got.LastClickedAt)
	assert.True(t, got.LastClickedAt.After(now))

	err = s.RecordClick(ctx, 999, now)
	assert.ErrorIs(t, err, repository.ErrCodeNotFound)
}

func TestDeactivateExpired(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now()

	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	expired := activeLink("dead01")
	expired.ExpiresAt = &past
	fresh := activeLink("live01")
	fresh.ExpiresAt = &future
	forever := activeLink("ever01")

	for _, l := range []*domain.ShortLink{expired, fresh, forever} {
		require.NoError(t, s.SaveLink(ctx, l))
	}

	count, err := s.DeactivateExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	exists, err := s.CodeExists(ctx, "dead01")
	require.NoError(t, err)
	assert.False(t, exists)
	exists, err = s.CodeExists(ctx, "live01")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestClickEventAggregation(t *testing.T) {
	s := New()
	ctx := context.Background()

	link := activeLink("abc123")
	require.NoError(t, s.SaveLink(ctx, link))

	ref1 := "https://a.example"
	ref2 := "https://b.example"
	ip1 := "203.0.113.1"
	ip2 := "203.0.113.2"
	old := time.Now().Add(-40 * 24 * time.Hour)

	events := []*domain.ClickEvent{
		{ShortLinkID: link.ID, Referrer: &ref1, IPAddress: &ip1, DeviceType: "mobile", ClickedAt: time.Now()},
		{ShortLinkID: link.ID, Referrer: &ref1, IPAddress: &ip1, DeviceType: "mobile", ClickedAt: time.Now()},
		{ShortLinkID: link.ID, Referrer: &ref2, IPAddress: &ip2, DeviceType: "desktop", ClickedAt: old},
	}
	for _, e := range events {
		require.NoError(t, s.SaveClickEvent(ctx, e))
	}

	total, err := s.CountClickEvents(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	unique, err := s.CountDistinctIPs(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), unique)

	recent, err := s.CountClickEventsSince(ctx, link.ID, time.Now().Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), recent)

	top, err := s.TopReferrers(ctx, link.ID, 5)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, domain.ReferrerCount{Referrer: ref1, Count: 2}, top[0])

	byDevice, err := s.ClicksByDevice(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), byDevice["mobile"])
	assert.Equal(t, int64(1), byDevice["desktop"])
}

func TestListOwnerLinksOrderAndLimit(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	for i, code := range []string{"link01", "link02", "link03"} {
		l := activeLink(code)
		l.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, s.SaveLink(ctx, l))
	}

	links, err := s.ListOwnerLinks(ctx, "owner-1", 2)
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Equal(t, "link03", links[0].Code)
	assert.Equal(t, "link02", links[1].Code)
}
