package models

import "time"

// DesignType identifies how a design was submitted.
type DesignType string

const (
	DesignTypeFigma DesignType = "figma"
	DesignTypePNG   DesignType = "png"
	DesignTypePDF   DesignType = "pdf"
	DesignTypeURL   DesignType = "url"
)

// AuditDepth is the user-selected thoroughness tier. It is advisory only.
type AuditDepth string

const (
	AuditDepthQuick    AuditDepth = "Quick"
	AuditDepthStandard AuditDepth = "Standard"
	AuditDepthDeep     AuditDepth = "Deep"
)

// DesignInput describes one design submission. It is created by the upload
// step and consumed exactly once by a scan.
type DesignInput struct {
	Type       DesignType `json:"type" validate:"required,oneof=figma png pdf url"`
	URL        string     `json:"url,omitempty" validate:"required_if=Type figma,required_if=Type url"`
	FigmaToken string     `json:"figmaToken,omitempty"`
	FileData   string     `json:"fileData,omitempty" validate:"required_if=Type png,required_if=Type pdf"`
	FileName   string     `json:"fileName,omitempty"`
	AuditDepth AuditDepth `json:"auditDepth,omitempty" validate:"omitempty,oneof=Quick Standard Deep"`
	APIKey     string     `json:"apiKey,omitempty"`
}

// Depth returns the audit depth, defaulting to Standard.
func (d DesignInput) Depth() AuditDepth {
	if d.AuditDepth == "" {
		return AuditDepthStandard
	}
	return d.AuditDepth
}

// WithCredentials fills an empty API key and Figma token from configured
// defaults. Values sent with the submission win.
func (d DesignInput) WithCredentials(apiKey, figmaToken string) DesignInput {
	if d.APIKey == "" {
		d.APIKey = apiKey
	}
	if d.FigmaToken == "" {
		d.FigmaToken = figmaToken
	}
	return d
}

// AuditStatus represents the processing state of a persisted audit.
type AuditStatus string

const (
	AuditStatusPending    AuditStatus = "pending"
	AuditStatusProcessing AuditStatus = "processing"
	AuditStatusCompleted  AuditStatus = "completed"
	AuditStatusFailed     AuditStatus = "failed"
)

// Audit is a persisted audit owned by a user.
type Audit struct {
	ID             string      `json:"id"`
	UserID         string      `json:"userId"`
	Title          string      `json:"title"`
	DesignType     DesignType  `json:"designType"`
	DesignURL      string      `json:"designUrl,omitempty"`
	DesignImageURL string      `json:"designImageUrl,omitempty"`
	AuditDepth     AuditDepth  `json:"auditDepth"`
	Score          int         `json:"score"`
	Status         AuditStatus `json:"status"`
	IsShared       bool        `json:"isShared"`
	ShareToken     string      `json:"shareToken,omitempty"`
	Issues         []Issue     `json:"issues"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

// Profile holds the editable account details of a user.
type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"fullName"`
	AvatarURL string    `json:"avatarUrl"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
