package models

import (
	"time"
)

/*
 Application layer data models.
*/

// ContentType is the closed set of payload kinds a link may carry.
type ContentType string

const (
	ContentTypeText  ContentType = "text"
	ContentTypeCode  ContentType = "code"
	ContentTypeFile  ContentType = "file"
	ContentTypeImage ContentType = "image"
)

var ContentTypeVals = map[ContentType]struct{}{
	ContentTypeText:  {},
	ContentTypeCode:  {},
	ContentTypeFile:  {},
	ContentTypeImage: {},
}

// ExpiryVals is the closed set of recognized expiry codes. Anything outside it is
// rejected at creation rather than silently coerced to a default.
var ExpiryVals = map[string]time.Duration{
	"1h":  time.Hour,
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
}

// Link is the durable record of a single shareable unit of content. The service
// treats Content as an opaque payload - it may be plaintext or ciphertext produced
// by the client, whose key travels in the url fragment and never reaches us.
type Link struct {
	ID           string
	Content      string
	Type         ContentType
	CreatedAt    time.Time
	ExpiresAt    time.Time
	MaxViews     int64 // 0 means unlimited
	CurrentViews int64
	IsEncrypted  bool
	IsOneTime    bool
	DownloadOnly bool
	PasswordHash string
	// set only when Type is file/image
	FileName string
	FileSize int64
	MimeType string
}

// Expired reports whether the link's deadline has passed at the given instant.
// now is a parameter so callers control the clock.
func (l *Link) Expired(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}

// QuotaExceeded reports whether the view quota is already exhausted. It is a fast
// pre-check only - the authoritative bound is enforced by the store's conditional
// increment, which checks and counts in one atomic step.
func (l *Link) QuotaExceeded() bool {
	return l.MaxViews > 0 && l.CurrentViews >= l.MaxViews
}

// RemainingLifetime returns how long the link has left to live at the given
// instant, never negative.
func (l *Link) RemainingLifetime(now time.Time) time.Duration {
	if l.Expired(now) {
		return 0
	}
	return l.ExpiresAt.Sub(now)
}

// CreateOptions carries validated creation parameters.
type CreateOptions struct {
	Expiry       string `json:"expiry"`
	MaxViews     int64  `json:"maxViews"`
	Encrypt      bool   `json:"encrypt"`
	OneTime      bool   `json:"oneTime"`
	DownloadOnly bool   `json:"downloadOnly"`
	Password     string `json:"password,omitempty"`
}

// FileMeta describes the original file behind a file/image link.
type FileMeta struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	Mime string `json:"mime"`
}

// LinkPayload is the response shape of a successful read. CurrentViews carries the
// post-increment count, i.e. this read is included.
type LinkPayload struct {
	ID           string      `json:"id"`
	Content      string      `json:"content"`
	Type         ContentType `json:"type"`
	ExpiresAt    time.Time   `json:"expiresAt"`
	MaxViews     int64       `json:"maxViews"`
	CurrentViews int64       `json:"currentViews"`
	IsEncrypted  bool        `json:"isEncrypted"`
	IsOneTime    bool        `json:"isOneTime"`
	DownloadOnly bool        `json:"downloadOnly"`
	FileName     string      `json:"fileName,omitempty"`
	FileSize     int64       `json:"fileSize,omitempty"`
	MimeType     string      `json:"mimeType,omitempty"`
}
