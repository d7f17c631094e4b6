package guidedcontent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/tendant/guided-content/pkg/guidedcontent/objectkey"
)

// IngestionMode is how a mutation request delivers its media.
type IngestionMode int

const (
	// ModeFiles (Mode F): raw file payloads plus optional parallel genders
	// and external video URLs. The resolver uploads the bytes.
	ModeFiles IngestionMode = iota
	// ModeReferences (Mode R): a fully formed media array; bytes were
	// uploaded out-of-band and no blob I/O happens here.
	ModeReferences
)

func (m IngestionMode) String() string {
	if m == ModeReferences {
		return "references"
	}
	return "files"
}

// FilePayload is one raw uploaded file.
type FilePayload struct {
	Name     string
	MimeType string
	Size     int64
	Reader   io.Reader
}

// MediaRequest is the media part of a create or update request.
//
// The mode is selected by shape: a non-nil Media slice (even an empty one)
// selects ModeReferences, anything else ModeFiles. Mixing a Media slice with
// Files or ExternalURLs is rejected.
type MediaRequest struct {
	Media          []MediaAttachment
	Files          []FilePayload
	Genders        []string
	ExternalURLs   []string
	DeletedIndices []int
}

// Mode returns the ingestion mode after checking the shape precondition.
func (r *MediaRequest) Mode() (IngestionMode, error) {
	if r == nil || r.Media == nil {
		return ModeFiles, nil
	}
	if len(r.Files) > 0 || len(r.ExternalURLs) > 0 {
		return ModeReferences, rejectf("request carries both a media array and raw files or external urls; send one or the other")
	}
	return ModeReferences, nil
}

// IsEmpty reports whether the request expresses no media intent at all.
func (r *MediaRequest) IsEmpty() bool {
	return r == nil || (r.Media == nil && len(r.Files) == 0 && len(r.ExternalURLs) == 0 && len(r.DeletedIndices) == 0)
}

// ParseGender normalizes a client gender value. Empty input yields "".
func ParseGender(v string) (Gender, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "":
		return "", nil
	case "m", "male":
		return GenderMale, nil
	case "f", "female":
		return GenderFemale, nil
	}
	return "", rejectf("invalid gender %q: use male or female", v)
}

// IngestionResolver turns a MediaRequest into an ordered attachment list.
type IngestionResolver struct {
	blobs  BlobStore
	keys   objectkey.Generator
	events EventSink
	logger *slog.Logger
}

// NewIngestionResolver creates a resolver writing into blobs.
func NewIngestionResolver(blobs BlobStore, keys objectkey.Generator, events EventSink, logger *slog.Logger) *IngestionResolver {
	if keys == nil {
		keys = objectkey.NewTimestampGenerator()
	}
	if events == nil {
		events = NewNoopEventSink()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestionResolver{blobs: blobs, keys: keys, events: events, logger: logger}
}

// IngestionPlan is a validated request. Nothing has been written yet.
type IngestionPlan struct {
	kind       ContentKind
	mode       IngestionMode
	references []MediaAttachment
	files      []plannedFile
	externals  []MediaAttachment
}

type plannedFile struct {
	payload FilePayload
	gender  Gender
}

// Count is the number of attachments the plan will produce.
func (p *IngestionPlan) Count() int {
	if p.mode == ModeReferences {
		return len(p.references)
	}
	return len(p.files) + len(p.externals)
}

// Uploads is the number of blob writes Execute will perform.
func (p *IngestionPlan) Uploads() int {
	return len(p.files)
}

// Prepare validates req against kind without touching any store. retained
// is the number of attachments kept ahead of the new ones; it offsets the
// gender index of each new file and counts toward MaxAttachments.
func (r *IngestionResolver) Prepare(kind ContentKind, req *MediaRequest, retained int) (*IngestionPlan, error) {
	mode, err := req.Mode()
	if err != nil {
		return nil, err
	}
	plan := &IngestionPlan{kind: kind, mode: mode}
	if req == nil {
		return plan, nil
	}

	if mode == ModeReferences {
		for i, m := range req.Media {
			if err := validateReference(kind, i, m); err != nil {
				return nil, err
			}
			if m.IsBlob() {
				if err := OwnedBy(r.blobs, kind, m.URL); err != nil {
					return nil, rejectf("media[%d]: %v", i, err)
				}
			}
		}
		if len(req.Media) > kind.MaxAttachments {
			return nil, tooMany(kind, len(req.Media))
		}
		plan.references = append(make([]MediaAttachment, 0, len(req.Media)), req.Media...)
		return plan, nil
	}

	if len(req.Files) > 0 && !kind.AcceptsMedia(MediaKindAudio) {
		return nil, rejectf("content kind %q does not accept uploaded files", kind.ID)
	}
	for i, f := range req.Files {
		if !kind.AcceptsMime(f.MimeType) {
			return nil, rejectf("file %q: type %q not allowed; allowed types: %s", f.Name, f.MimeType, strings.Join(kind.AcceptedMimePatterns, ", "))
		}
		if f.Size > kind.MaxBytesPerFile {
			return nil, rejectf("file %q: size %d exceeds limit of %d bytes", f.Name, f.Size, kind.MaxBytesPerFile)
		}
		if f.Reader == nil {
			return nil, rejectf("file %q has no content", f.Name)
		}
		gender, err := r.genderFor(kind, req.Genders, retained+i)
		if err != nil {
			return nil, err
		}
		plan.files = append(plan.files, plannedFile{payload: f, gender: gender})
	}

	for _, raw := range req.ExternalURLs {
		ref, ok := ResolveExternal(raw)
		if !ok {
			r.logger.Debug("Skipping unparseable external url", "kind", kind.ID, "url", raw)
			continue
		}
		if !kind.AcceptsMedia(MediaKindVideoReference) {
			return nil, rejectf("content kind %q does not accept external video references", kind.ID)
		}
		plan.externals = append(plan.externals, NewExternalAttachment(strings.TrimSpace(raw), ref))
	}

	if total := retained + plan.Count(); total > kind.MaxAttachments {
		return nil, tooMany(kind, total)
	}
	return plan, nil
}

// Execute uploads the plan's files in order and returns the new
// attachments: uploaded files first, then external references. Uploads
// already performed are not rolled back when a later one fails.
func (r *IngestionResolver) Execute(ctx context.Context, plan *IngestionPlan) ([]MediaAttachment, error) {
	if plan.mode == ModeReferences {
		return plan.references, nil
	}

	out := make([]MediaAttachment, 0, plan.Count())
	for _, f := range plan.files {
		url, err := r.upload(ctx, plan.kind, f.payload)
		if err != nil {
			if len(out) > 0 {
				r.logger.Error("Upload failed after earlier uploads; leaving orphaned blobs",
					"kind", plan.kind.ID, "orphaned", urlsOf(out), "error", err)
			}
			return nil, err
		}
		out = append(out, NewBlobAttachment(url, f.gender))
	}
	return append(out, plan.externals...), nil
}

// Resolve is Prepare followed by Execute.
func (r *IngestionResolver) Resolve(ctx context.Context, kind ContentKind, req *MediaRequest, retained int) ([]MediaAttachment, error) {
	plan, err := r.Prepare(kind, req, retained)
	if err != nil {
		return nil, err
	}
	return r.Execute(ctx, plan)
}

func (r *IngestionResolver) upload(ctx context.Context, kind ContentKind, f FilePayload) (string, error) {
	key := r.keys.GenerateKey(kind.BlobNamespace, f.Name)
	body := &limitedReader{r: f.Reader, remaining: kind.MaxBytesPerFile}
	if kind.MaxBytesPerFile <= 0 {
		body.remaining = -1
	}
	h, err := r.blobs.Write(ctx, key, body, f.MimeType)
	if body.exceeded {
		r.discard(ctx, kind, key, h)
		return "", rejectf("file %q: size exceeds limit of %d bytes", f.Name, kind.MaxBytesPerFile)
	}
	if err != nil {
		return "", storeErr("blob", key, "write", err)
	}
	if err := r.blobs.MakePublic(ctx, h); err != nil {
		return "", storeErr("blob", key, "make_public", err)
	}
	url := r.blobs.PublicURL(h)
	if err := r.events.BlobUploaded(ctx, kind.ID, h, url); err != nil {
		r.logger.Warn("Event sink failed", "event", "blob_uploaded", "error", err)
	}
	return url, nil
}

// discard removes a partially written object. h may be nil when the write failed.
func (r *IngestionResolver) discard(ctx context.Context, kind ContentKind, key string, h *BlobHandle) {
	if h == nil {
		h = &BlobHandle{Key: key}
	}
	url := r.blobs.PublicURL(h)
	if err := r.blobs.Delete(ctx, url); err != nil && !errors.Is(err, ErrNotFound) {
		r.logger.Warn("Failed to delete oversized upload", "kind", kind.ID, "key", key, "error", err)
	}
}

var errSizeLimit = errors.New("size limit exceeded")

// limitedReader fails the read that takes it past remaining bytes. A
// negative remaining disables the limit.
type limitedReader struct {
	r         io.Reader
	remaining int64
	exceeded  bool
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.remaining < 0 {
		return l.r.Read(p)
	}
	if l.exceeded {
		return 0, errSizeLimit
	}
	if int64(len(p)) > l.remaining+1 {
		p = p[:l.remaining+1]
	}
	n, err := l.r.Read(p)
	if int64(n) > l.remaining {
		l.exceeded = true
		return 0, errSizeLimit
	}
	l.remaining -= int64(n)
	return n, err
}

func (r *IngestionResolver) genderFor(kind ContentKind, genders []string, idx int) (Gender, error) {
	if !kind.SupportsGenderTag {
		return "", nil
	}
	if idx < len(genders) {
		g, err := ParseGender(genders[idx])
		if err != nil {
			return "", err
		}
		if g != "" {
			return g, nil
		}
	}
	return GenderMale, nil
}

// OwnedBy checks that url addresses an object in kind's blob namespace.
// Stores that do not implement KeyResolver cannot be checked and pass.
func OwnedBy(blobs BlobStore, kind ContentKind, url string) error {
	resolver, ok := blobs.(KeyResolver)
	if !ok {
		return nil
	}
	key, err := resolver.KeyFor(url)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(key, kind.BlobNamespace+"/") {
		return fmt.Errorf("%s is outside blob namespace %q of content kind %q: %w", url, kind.BlobNamespace, kind.ID, ErrForeignURL)
	}
	return nil
}

func validateReference(kind ContentKind, i int, m MediaAttachment) error {
	if !m.Type.IsValid() {
		return rejectf("media[%d]: unknown type %q", i, m.Type)
	}
	if !kind.AcceptsMedia(m.Type) {
		return rejectf("media[%d]: type %q not accepted by content kind %q", i, m.Type, kind.ID)
	}
	if m.URL == "" {
		return rejectf("media[%d]: url is required", i)
	}
	if m.Gender != "" && m.Gender != GenderMale && m.Gender != GenderFemale {
		return rejectf("media[%d]: invalid gender %q", i, m.Gender)
	}
	return nil
}

func tooMany(kind ContentKind, n int) error {
	return &PayloadError{
		Reason: fmt.Sprintf("content kind %q allows at most %d attachments, request would have %d", kind.ID, kind.MaxAttachments, n),
		Err:    ErrTooManyAttachments,
	}
}

func urlsOf(media []MediaAttachment) []string {
	out := make([]string, 0, len(media))
	for _, m := range media {
		out = append(out, m.URL)
	}
	return out
}
