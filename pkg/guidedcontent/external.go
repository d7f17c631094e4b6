package guidedcontent

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// ExternalRef is a parsed reference to an externally hosted video.
type ExternalRef struct {
	ExternalID string
	PreviewURL string
}

// PreviewURLTemplate derives the preview image from a video id. No request
// is made to check that the image exists.
const PreviewURLTemplate = "https://img.youtube.com/vi/%s/hqdefault.jpg"

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ResolveExternal extracts a video id from the known URL shapes:
//
//	https://www.youtube.com/watch?v=ID
//	https://youtu.be/ID
//	https://www.youtube.com/embed/ID
//	https://www.youtube.com/shorts/ID, /v/ID, /live/ID
//
// It returns false when nothing matches; callers treat that as "no
// attachment" rather than an error.
func ResolveExternal(raw string) (ExternalRef, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ExternalRef{}, false
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ExternalRef{}, false
	}

	host := strings.ToLower(strings.TrimPrefix(u.Hostname(), "www."))
	var id string
	switch host {
	case "youtu.be":
		id = firstSegment(u.Path)
	case "youtube.com", "m.youtube.com", "music.youtube.com", "youtube-nocookie.com":
		segments := strings.Split(strings.Trim(u.Path, "/"), "/")
		switch {
		case len(segments) >= 1 && segments[0] == "watch":
			id = u.Query().Get("v")
		case len(segments) >= 2 && isPathPrefix(segments[0]):
			id = segments[1]
		}
	}

	if !videoIDPattern.MatchString(id) {
		return ExternalRef{}, false
	}
	return ExternalRef{ExternalID: id, PreviewURL: fmt.Sprintf(PreviewURLTemplate, id)}, true
}

func isPathPrefix(s string) bool {
	switch s {
	case "embed", "shorts", "v", "live":
		return true
	}
	return false
}

func firstSegment(p string) string {
	p = strings.Trim(p, "/")
	if i := strings.IndexByte(p, '/'); i >= 0 {
		return p[:i]
	}
	return p
}
