package guidedcontent

import (
	"errors"
	"fmt"
	"mime"
	"sort"
	"strings"
)

// ContentKind holds the constraints of one content kind. Kinds are data,
// not code: adding one means adding a registry entry.
type ContentKind struct {
	ID                   string      `json:"id" yaml:"-" toml:"-"`
	BlobNamespace        string      `json:"blobNamespace" yaml:"blob_namespace" toml:"blob_namespace"`
	AcceptedMediaKinds   []MediaKind `json:"acceptedMediaKinds" yaml:"accepted_media_kinds" toml:"accepted_media_kinds"`
	SupportsGenderTag    bool        `json:"supportsGenderTag" yaml:"supports_gender_tag" toml:"supports_gender_tag"`
	MaxAttachments       int         `json:"maxAttachments" yaml:"max_attachments" toml:"max_attachments"`
	MaxBytesPerFile      int64       `json:"maxBytesPerFile" yaml:"max_bytes_per_file" toml:"max_bytes_per_file"`
	AcceptedMimePatterns []string    `json:"acceptedMimePatterns" yaml:"accepted_mime_patterns" toml:"accepted_mime_patterns"`
}

// AcceptsMedia reports whether attachments of kind m may be attached.
func (k ContentKind) AcceptsMedia(m MediaKind) bool {
	for _, accepted := range k.AcceptedMediaKinds {
		if accepted == m {
			return true
		}
	}
	return false
}

// AcceptsMime reports whether mimeType matches one of the accepted
// patterns. A pattern is either exact ("audio/mpeg") or a type wildcard
// ("audio/*"). Parameters such as "; charset=" are ignored.
func (k ContentKind) AcceptsMime(mimeType string) bool {
	mt, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return false
	}
	for _, pattern := range k.AcceptedMimePatterns {
		pattern = strings.ToLower(strings.TrimSpace(pattern))
		if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
			if strings.HasPrefix(mt, prefix+"/") {
				return true
			}
			continue
		}
		if pattern == "*/*" || pattern == mt {
			return true
		}
	}
	return false
}

func (k ContentKind) validate() error {
	var errs []error
	if k.ID == "" {
		errs = append(errs, errors.New("id is required"))
	}
	if k.BlobNamespace == "" {
		errs = append(errs, errors.New("blob namespace is required"))
	}
	if len(k.AcceptedMediaKinds) == 0 {
		errs = append(errs, errors.New("at least one accepted media kind is required"))
	}
	for _, m := range k.AcceptedMediaKinds {
		if !m.IsValid() {
			errs = append(errs, fmt.Errorf("unsupported media kind %q", m))
		}
	}
	if k.MaxAttachments <= 0 {
		errs = append(errs, errors.New("max attachments must be positive"))
	}
	if k.AcceptsMedia(MediaKindAudio) {
		if k.MaxBytesPerFile <= 0 {
			errs = append(errs, errors.New("max bytes per file must be positive"))
		}
		if len(k.AcceptedMimePatterns) == 0 {
			errs = append(errs, errors.New("at least one accepted mime pattern is required"))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("content kind %q: %w", k.ID, errors.Join(errs...))
	}
	return nil
}

// Registry is the immutable set of configured content kinds. It is built
// once at startup and only read afterwards.
type Registry struct {
	kinds map[string]ContentKind
	ids   []string
}

// NewRegistry validates kinds and builds a registry. Duplicate ids fail.
func NewRegistry(kinds ...ContentKind) (*Registry, error) {
	if len(kinds) == 0 {
		return nil, errors.New("registry requires at least one content kind")
	}
	r := &Registry{kinds: make(map[string]ContentKind, len(kinds))}
	for _, k := range kinds {
		if err := k.validate(); err != nil {
			return nil, err
		}
		if _, dup := r.kinds[k.ID]; dup {
			return nil, fmt.Errorf("duplicate content kind %q", k.ID)
		}
		k.AcceptedMediaKinds = append([]MediaKind(nil), k.AcceptedMediaKinds...)
		k.AcceptedMimePatterns = append([]string(nil), k.AcceptedMimePatterns...)
		r.kinds[k.ID] = k
		r.ids = append(r.ids, k.ID)
	}
	sort.Strings(r.ids)
	return r, nil
}

const defaultMaxBytes = 50 * 1024 * 1024

// DefaultKinds returns the built-in content kinds.
func DefaultKinds() []ContentKind {
	return []ContentKind{
		{
			ID:                   "audio",
			BlobNamespace:        "guided-audio",
			AcceptedMediaKinds:   []MediaKind{MediaKindAudio},
			SupportsGenderTag:    true,
			MaxAttachments:       10,
			MaxBytesPerFile:      defaultMaxBytes,
			AcceptedMimePatterns: []string{"audio/*"},
		},
		{
			ID:                   "meditation",
			BlobNamespace:        "guided-meditation",
			AcceptedMediaKinds:   []MediaKind{MediaKindAudio},
			SupportsGenderTag:    true,
			MaxAttachments:       10,
			MaxBytesPerFile:      defaultMaxBytes,
			AcceptedMimePatterns: []string{"audio/*"},
		},
		{
			ID:                   "visualization",
			BlobNamespace:        "guided-visualization",
			AcceptedMediaKinds:   []MediaKind{MediaKindAudio, MediaKindVideoReference},
			SupportsGenderTag:    true,
			MaxAttachments:       10,
			MaxBytesPerFile:      defaultMaxBytes,
			AcceptedMimePatterns: []string{"audio/*"},
		},
	}
}

// DefaultRegistry returns a registry holding DefaultKinds.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(DefaultKinds()...)
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup returns the kind registered under id, failing closed with
// ErrUnknownKind.
func (r *Registry) Lookup(id string) (ContentKind, error) {
	k, ok := r.kinds[id]
	if !ok {
		return ContentKind{}, fmt.Errorf("%w: %q (valid kinds: %s)", ErrUnknownKind, id, strings.Join(r.ids, ", "))
	}
	return k, nil
}

// KindIDs returns the registered kind ids in sorted order.
func (r *Registry) KindIDs() []string {
	return append([]string(nil), r.ids...)
}

// Kinds returns all registered kinds sorted by id.
func (r *Registry) Kinds() []ContentKind {
	out := make([]ContentKind, 0, len(r.ids))
	for _, id := range r.ids {
		out = append(out, r.kinds[id])
	}
	return out
}
