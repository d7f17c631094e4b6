package guidedcontent

import (
	"encoding/json"
	"time"
)

// MediaKind is the tag of a MediaAttachment.
type MediaKind string

// Media kind constants. The wire values match what clients already send.
const (
	// MediaKindAudio is a Blob attachment backed by an object in the blob store.
	MediaKindAudio MediaKind = "audio"
	// MediaKindVideoReference is an External attachment pointing at a hosted video.
	MediaKindVideoReference MediaKind = "youtube"
)

// IsValid reports whether k is one of the known media kinds.
func (k MediaKind) IsValid() bool {
	switch k {
	case MediaKindAudio, MediaKindVideoReference:
		return true
	}
	return false
}

// Gender tags a Blob attachment for kinds that support per-attachment gender.
type Gender string

const (
	GenderMale   Gender = "m"
	GenderFemale Gender = "f"
)

// MediaAttachment is a tagged variant with exactly two cases:
//
//	Blob     (Type == MediaKindAudio):          URL, optional Gender
//	External (Type == MediaKindVideoReference): URL, ExternalID, PreviewURL
//
// Callers dispatch on Type (or IsBlob), never on which fields are populated.
type MediaAttachment struct {
	Type       MediaKind `json:"type"`
	URL        string    `json:"url"`
	Gender     Gender    `json:"gender,omitempty"`
	ExternalID string    `json:"videoId,omitempty"`
	PreviewURL string    `json:"thumbnailUrl,omitempty"`
}

// NewBlobAttachment builds the Blob case.
func NewBlobAttachment(url string, gender Gender) MediaAttachment {
	return MediaAttachment{Type: MediaKindAudio, URL: url, Gender: gender}
}

// NewExternalAttachment builds the External case from a resolved reference.
func NewExternalAttachment(url string, ref ExternalRef) MediaAttachment {
	return MediaAttachment{
		Type:       MediaKindVideoReference,
		URL:        url,
		ExternalID: ref.ExternalID,
		PreviewURL: ref.PreviewURL,
	}
}

// IsBlob reports whether the attachment has a backing blob-store object.
func (m MediaAttachment) IsBlob() bool {
	return m.Type == MediaKindAudio
}

// ContentItem is one piece of guided content. Fields holds the free-form
// attributes (title, description, duration, ...) supplied by clients.
type ContentItem struct {
	ID          string            `json:"id"`
	ContentType string            `json:"contentType"`
	CategoryID  string            `json:"categoryId,omitempty"`
	Media       []MediaAttachment `json:"media"`
	IsPublished bool              `json:"isPublished"`
	IsPremium   bool              `json:"isPremium"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
	Fields      map[string]any    `json:"-"`
}

// MarshalJSON flattens Fields next to the first-class attributes.
func (c ContentItem) MarshalJSON() ([]byte, error) {
	type alias ContentItem
	return flatten(alias(c), c.Fields)
}

// Category groups content items of one kind. ItemCount is derived at read
// time and never stored.
type Category struct {
	ID          string         `json:"id"`
	ContentType string         `json:"contentType"`
	Name        string         `json:"name,omitempty"`
	ItemCount   int            `json:"itemCount"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	Fields      map[string]any `json:"-"`
}

// MarshalJSON flattens Fields next to the first-class attributes.
func (c Category) MarshalJSON() ([]byte, error) {
	type alias Category
	return flatten(alias(c), c.Fields)
}

func flatten(v any, extra map[string]any) ([]byte, error) {
	base, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if len(extra) == 0 {
		return base, nil
	}
	merged := make(map[string]any, len(extra)+8)
	for k, val := range extra {
		merged[k] = val
	}
	var fixed map[string]any
	if err := json.Unmarshal(base, &fixed); err != nil {
		return nil, err
	}
	for k, val := range fixed {
		merged[k] = val
	}
	return json.Marshal(merged)
}

// DeleteResult is returned by delete operations. FailedCleanups lists blob
// URLs whose best-effort deletion failed; the document itself is gone.
type DeleteResult struct {
	ID             string   `json:"id"`
	FailedCleanups []string `json:"failedCleanups,omitempty"`
}

// UploadTicket describes a prepared direct upload into a kind's namespace.
type UploadTicket struct {
	Key       string    `json:"key"`
	UploadURL string    `json:"uploadUrl"`
	PublicURL string    `json:"publicUrl"`
	MimeType  string    `json:"mimeType"`
	ExpiresAt time.Time `json:"expiresAt"`
}
