package models

import (
	"encoding/json"
	"time"
)

// AuthMethod is how the connector authenticates against the IMAP server.
type AuthMethod string

const (
	// AuthMethodOAuth2 authenticates with SASL XOAUTH2 and a bearer token
	AuthMethodOAuth2 AuthMethod = "oauth2"
	// AuthMethodAppPassword authenticates with a plain LOGIN
	AuthMethodAppPassword AuthMethod = "app_password"
)

// PostActionKind is the normalized mutation applied to a remote message
// after successful ingestion.
type PostActionKind string

const (
	PostActionNone     PostActionKind = "none"
	PostActionMarkRead PostActionKind = "mark_read"
	PostActionMove     PostActionKind = "move"
	PostActionDelete   PostActionKind = "delete"
	PostActionArchive  PostActionKind = "archive"
)

// PostAction is the single normalized post-ingestion action for an account.
// It is resolved once from the stored legacy/new fields; call sites never
// re-check field precedence.
type PostAction struct {
	Kind   PostActionKind
	Folder string // destination, only meaningful for PostActionMove
}

// RequiresWrite reports whether applying the action needs a writable
// mailbox selection. Read-only selection is the default safety posture.
func (a PostAction) RequiresWrite() bool {
	return a.Kind != PostActionNone
}

// MailAccount represents a remote mailbox to ingest from.
// Owned by configuration; the ingestion core only reads it.
type MailAccount struct {
	ID                uint   `gorm:"primaryKey" json:"id"`
	Name              string `gorm:"size:100" json:"name"`
	Email             string `gorm:"size:255;not null;uniqueIndex" json:"email"`
	IMAPHost          string `gorm:"size:255;not null" json:"imap_host"`
	IMAPPort          int    `gorm:"default:993" json:"imap_port"`
	UseSSL            bool   `gorm:"default:true" json:"use_ssl"`
	AuthMethod        string `gorm:"size:20;default:'app_password'" json:"auth_method"`
	OAuthClientID     string `gorm:"size:255" json:"oauth_client_id"`
	OAuthClientSecret string `gorm:"size:255" json:"-"`

	// Polling configuration
	Enabled            bool   `gorm:"default:true" json:"enabled"`
	Folders            string `gorm:"type:text;default:'[\"INBOX\"]'" json:"folders"` // JSON array
	SearchCriteria     string `gorm:"size:50;default:'UNSEEN'" json:"search_criteria"`
	MaxPerFetch        int    `gorm:"default:50" json:"max_per_fetch"`
	MaxAgeDays         int    `gorm:"default:0" json:"max_age_days"` // 0 = no cutoff
	RequireAttachments bool   `gorm:"default:false" json:"require_attachments"`
	MaxAttachmentMB    int    `gorm:"default:50" json:"max_attachment_mb"`
	DownloadLinks      bool   `gorm:"default:true" json:"download_links"`

	// Post-action fields. MarkAsRead/MoveToFolder are the legacy pair kept
	// for existing rows; PostAction/PostActionFolder win when set.
	MarkAsRead       bool   `gorm:"default:false" json:"mark_as_read"`
	MoveToFolder     string `gorm:"size:255" json:"move_to_folder"`
	PostAction       string `gorm:"size:20" json:"post_action"`
	PostActionFolder string `gorm:"size:255" json:"post_action_folder"`

	LastSyncAt time.Time `json:"last_sync_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	// Relations
	Emails []Email `gorm:"foreignKey:AccountID" json:"emails,omitempty"`
}

// FolderList decodes the configured folder set, defaulting to INBOX.
func (a *MailAccount) FolderList() []string {
	var folders []string
	if err := json.Unmarshal([]byte(a.Folders), &folders); err != nil || len(folders) == 0 {
		return []string{"INBOX"}
	}
	return folders
}

// ResolvePostAction normalizes the stored post-action fields into a single
// tagged value. New-style fields take precedence over the legacy pair.
func (a *MailAccount) ResolvePostAction() PostAction {
	switch PostActionKind(a.PostAction) {
	case PostActionMarkRead:
		return PostAction{Kind: PostActionMarkRead}
	case PostActionMove:
		if a.PostActionFolder != "" {
			return PostAction{Kind: PostActionMove, Folder: a.PostActionFolder}
		}
		return PostAction{Kind: PostActionNone}
	case PostActionDelete:
		return PostAction{Kind: PostActionDelete}
	case PostActionArchive:
		return PostAction{Kind: PostActionArchive}
	case PostActionNone:
		return PostAction{Kind: PostActionNone}
	}

	// Legacy pair: move wins over mark-as-read when both are set.
	if a.MoveToFolder != "" {
		return PostAction{Kind: PostActionMove, Folder: a.MoveToFolder}
	}
	if a.MarkAsRead {
		return PostAction{Kind: PostActionMarkRead}
	}
	return PostAction{Kind: PostActionNone}
}
