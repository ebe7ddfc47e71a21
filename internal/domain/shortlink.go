package domain

import "time"

// ShortLink is the persisted mapping from a short code to a destination URL.
// Code is unique among active rows (partial unique index); a deactivated
// code may be reissued by a later generation, which is accepted.
type ShortLink struct {
	ID             int64      `gorm:"primaryKey;column:id" json:"id"`
	Code           string     `gorm:"column:code;size:10;not null;index:uk_short_urls_active_code,unique,where:is_active" json:"code"`
	DestinationURL string     `gorm:"column:destination_url;type:text;not null" json:"destination_url"`
	OwnerID        string     `gorm:"column:owner_id;size:64;not null;index" json:"owner_id"`
	EntityID       *string    `gorm:"column:entity_id;size:64;index" json:"entity_id,omitempty"`
	EntityKind     *string    `gorm:"column:entity_kind;size:32" json:"entity_kind,omitempty"`
	SubTag         *string    `gorm:"column:sub_tag;size:64" json:"sub_tag,omitempty"`
	Title          *string    `gorm:"column:title;size:255" json:"title,omitempty"`
	Description    *string    `gorm:"column:description;type:text" json:"description,omitempty"`
	Variant        *string    `gorm:"column:variant;size:32" json:"variant,omitempty"`
	ClickCount     int64      `gorm:"column:click_count;not null;default:0" json:"click_count"`
	LastClickedAt  *time.Time `gorm:"column:last_clicked_at" json:"last_clicked_at,omitempty"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	ExpiresAt      *time.Time `gorm:"column:expires_at;index" json:"expires_at,omitempty"`
	IsActive       bool       `gorm:"column:is_active;not null;default:true;index" json:"is_active"`
}

// TableName maps the model to its table.
func (ShortLink) TableName() string {
	return "short_urls"
}

// Expired reports whether the link has a non-nil expiry in the past relative
// to now. Both the lazy per-read deactivation and the batch sweep apply this
// same rule so the two paths cannot diverge.
func (l *ShortLink) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && l.ExpiresAt.Before(now)
}

// AssociatedEntity is the optional structured back-reference a link carries
// to the content item it promotes, plus an optional affiliate sub-tag.
type AssociatedEntity struct {
	EntityID   string `json:"entity_id"`
	EntityKind string `json:"entity_kind,omitempty"`
	SubTag     string `json:"sub_tag,omitempty"`
}
