package domain

import "time"

// MetadataMaxLen caps stored user-agent and referrer strings to bound
// per-click storage.
const MetadataMaxLen = 500

// ClickEvent is one resolved visit, recorded only when detailed tracking is
// enabled. Rows are append-only and owned by their parent ShortLink.
type ClickEvent struct {
	ID          int64     `gorm:"primaryKey;column:id" json:"id"`
	ShortLinkID int64     `gorm:"column:short_link_id;not null;index" json:"short_link_id"`
	UserAgent   *string   `gorm:"column:user_agent;size:500" json:"user_agent,omitempty"`
	IPAddress   *string   `gorm:"column:ip_address;size:45" json:"ip_address,omitempty"`
	Referrer    *string   `gorm:"column:referrer;size:500" json:"referrer,omitempty"`
	DeviceType  string    `gorm:"column:device_type;size:10;not null;default:unknown" json:"device_type"`
	Browser     *string   `gorm:"column:browser;size:50" json:"browser,omitempty"`
	OS          *string   `gorm:"column:os;size:50" json:"os,omitempty"`
	ClickedAt   time.Time `gorm:"column:clicked_at;autoCreateTime;index" json:"clicked_at"`
}

// TableName maps the model to its table.
func (ClickEvent) TableName() string {
	return "short_url_clicks"
}

// ReferrerCount is one row of the top-referrers aggregation.
type ReferrerCount struct {
	Referrer string `gorm:"column:referrer" json:"referrer"`
	Count    int64  `gorm:"column:count" json:"count"`
}
