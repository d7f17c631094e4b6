package guidedcontent_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/guided-content/pkg/guidedcontent"
)

func TestDefaultRegistry(t *testing.T) {
	r := guidedcontent.DefaultRegistry()
	assert.Equal(t, []string{"audio", "meditation", "visualization"}, r.KindIDs())

	k, err := r.Lookup("visualization")
	require.NoError(t, err)
	assert.Equal(t, "guided-visualization", k.BlobNamespace)
	assert.True(t, k.AcceptsMedia(guidedcontent.MediaKindVideoReference))
	assert.True(t, k.SupportsGenderTag)
	assert.Equal(t, 10, k.MaxAttachments)
	assert.Equal(t, int64(50*1024*1024), k.MaxBytesPerFile)

	k, err = r.Lookup("audio")
	require.NoError(t, err)
	assert.False(t, k.AcceptsMedia(guidedcontent.MediaKindVideoReference))
}

func TestRegistryLookupFailsClosed(t *testing.T) {
	r := guidedcontent.DefaultRegistry()
	_, err := r.Lookup("podcast")
	require.Error(t, err)
	assert.ErrorIs(t, err, guidedcontent.ErrUnknownKind)
	assert.Contains(t, err.Error(), "audio, meditation, visualization")

	_, err = r.Lookup("")
	assert.ErrorIs(t, err, guidedcontent.ErrUnknownKind)
}

func TestNewRegistryValidation(t *testing.T) {
	valid := guidedcontent.ContentKind{
		ID:                   "sleep",
		BlobNamespace:        "guided-sleep",
		AcceptedMediaKinds:   []guidedcontent.MediaKind{guidedcontent.MediaKindAudio},
		MaxAttachments:       3,
		MaxBytesPerFile:      1024,
		AcceptedMimePatterns: []string{"audio/mpeg"},
	}

	tests := []struct {
		name    string
		kinds   []guidedcontent.ContentKind
		wantErr string
	}{
		{name: "valid", kinds: []guidedcontent.ContentKind{valid}},
		{name: "empty", kinds: nil, wantErr: "at least one"},
		{name: "duplicate", kinds: []guidedcontent.ContentKind{valid, valid}, wantErr: "duplicate"},
		{
			name: "missing namespace",
			kinds: []guidedcontent.ContentKind{func() guidedcontent.ContentKind {
				k := valid
				k.BlobNamespace = ""
				return k
			}()},
			wantErr: "blob namespace",
		},
		{
			name: "unknown media kind",
			kinds: []guidedcontent.ContentKind{func() guidedcontent.ContentKind {
				k := valid
				k.AcceptedMediaKinds = []guidedcontent.MediaKind{"vimeo"}
				return k
			}()},
			wantErr: "vimeo",
		},
		{
			name: "audio kind without mime patterns",
			kinds: []guidedcontent.ContentKind{func() guidedcontent.ContentKind {
				k := valid
				k.AcceptedMimePatterns = nil
				return k
			}()},
			wantErr: "mime pattern",
		},
		{
			name: "video-only kind needs no size limit",
			kinds: []guidedcontent.ContentKind{{
				ID:                 "talks",
				BlobNamespace:      "talks",
				AcceptedMediaKinds: []guidedcontent.MediaKind{guidedcontent.MediaKindVideoReference},
				MaxAttachments:     1,
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := guidedcontent.NewRegistry(tt.kinds...)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Nil(t, r)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, r)
		})
	}
}

func TestAcceptsMime(t *testing.T) {
	k := guidedcontent.ContentKind{AcceptedMimePatterns: []string{"audio/*", "video/mp4"}}

	tests := []struct {
		mime string
		want bool
	}{
		{"audio/mpeg", true},
		{"audio/wav", true},
		{"AUDIO/MPEG", true},
		{"audio/mpeg; charset=binary", true},
		{"video/mp4", true},
		{"video/webm", false},
		{"image/png", false},
		{"audiox/mpeg", false},
		{"", false},
		{"not a mime", false},
	}
	for _, tt := range tests {
		t.Run(tt.mime, func(t *testing.T) {
			assert.Equal(t, tt.want, k.AcceptsMime(tt.mime))
		})
	}
}
