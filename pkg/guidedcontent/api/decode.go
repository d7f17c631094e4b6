package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tendant/guided-content/pkg/guidedcontent"
)

// Form and JSON keys carrying media intent. Everything else is a content field.
const (
	keyMedia          = "media"
	keyMediaFiles     = "mediaFiles"
	keyGenders        = "genders"
	keyExternalURLs   = "youtubeUrls"
	keyDeletedIndices = "deletedMediaIndices"
)

var mediaKeys = []string{keyMedia, keyMediaFiles, keyGenders, keyExternalURLs, keyDeletedIndices}

type mutationBody struct {
	Fields map[string]any
	Media  *guidedcontent.MediaRequest

	files []multipart.File
	form  *multipart.Form
}

// Close releases uploaded file parts.
func (b *mutationBody) Close() {
	for _, f := range b.files {
		_ = f.Close()
	}
	if b.form != nil {
		_ = b.form.RemoveAll()
	}
}

func (h *Handler) decodeMutation(w http.ResponseWriter, r *http.Request) (*mutationBody, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		return h.decodeMultipart(r)
	}
	return h.decodeJSONMutation(w, r)
}

func (h *Handler) decodeObject(w http.ResponseWriter, r *http.Request) (map[string]any, error) {
	fields := map[string]any{}
	body := http.MaxBytesReader(w, r.Body, h.maxJSON)
	if err := json.NewDecoder(body).Decode(&fields); err != nil && !errors.Is(err, io.EOF) {
		return nil, badRequest(err)
	}
	return fields, nil
}

func (h *Handler) decodeJSONMutation(w http.ResponseWriter, r *http.Request) (*mutationBody, error) {
	fields, err := h.decodeObject(w, r)
	if err != nil {
		return nil, err
	}
	body := &mutationBody{Fields: fields}

	var req guidedcontent.MediaRequest
	present := false

	if raw, ok := fields[keyMedia]; ok && raw != nil {
		present = true
		data, err := json.Marshal(raw)
		if err != nil {
			return nil, badRequest(err)
		}
		if err := json.Unmarshal(data, &req.Media); err != nil {
			return nil, badRequest(fmt.Errorf("media must be an array of attachments: %w", err))
		}
		if req.Media == nil {
			req.Media = []guidedcontent.MediaAttachment{}
		}
	}
	if raw, ok := fields[keyExternalURLs]; ok {
		present = true
		if req.ExternalURLs, err = stringList(raw); err != nil {
			return nil, err
		}
	}
	if raw, ok := fields[keyGenders]; ok {
		present = true
		if req.Genders, err = stringList(raw); err != nil {
			return nil, err
		}
	}
	if raw, ok := fields[keyDeletedIndices]; ok {
		present = true
		if req.DeletedIndices, err = indexList(raw); err != nil {
			return nil, err
		}
	}

	for _, k := range mediaKeys {
		delete(fields, k)
	}
	if present {
		body.Media = &req
	}
	return body, nil
}

func (h *Handler) decodeMultipart(r *http.Request) (*mutationBody, error) {
	if err := r.ParseMultipartForm(h.maxMemory); err != nil {
		return nil, badRequest(err)
	}
	form := r.MultipartForm
	body := &mutationBody{Fields: map[string]any{}, form: form}

	for key, values := range form.Value {
		name := strings.TrimSuffix(key, "[]")
		if isMediaKey(name) || len(values) == 0 {
			continue
		}
		if len(values) == 1 {
			body.Fields[name] = values[0]
			continue
		}
		list := make([]any, len(values))
		for i, v := range values {
			list[i] = v
		}
		body.Fields[name] = list
	}

	var req guidedcontent.MediaRequest
	present := false

	if values := formValues(form, keyMedia); len(values) > 0 {
		present = true
		if err := json.Unmarshal([]byte(values[0]), &req.Media); err != nil {
			body.Close()
			return nil, badRequest(fmt.Errorf("media must be a JSON array of attachments: %w", err))
		}
		if req.Media == nil {
			req.Media = []guidedcontent.MediaAttachment{}
		}
	}

	for _, fh := range formFiles(form, keyMediaFiles) {
		f, err := fh.Open()
		if err != nil {
			body.Close()
			return nil, badRequest(err)
		}
		body.files = append(body.files, f)
		req.Files = append(req.Files, guidedcontent.FilePayload{
			Name:     fh.Filename,
			MimeType: fileMimeType(fh),
			Size:     fh.Size,
			Reader:   f,
		})
		present = true
	}

	if values := formValues(form, keyGenders); len(values) > 0 {
		present = true
		req.Genders = values
	}
	if values := formValues(form, keyExternalURLs); len(values) > 0 {
		present = true
		req.ExternalURLs = values
	}
	if values := formValues(form, keyDeletedIndices); len(values) > 0 {
		present = true
		for _, v := range values {
			indices, err := parseIndices(v)
			if err != nil {
				body.Close()
				return nil, err
			}
			req.DeletedIndices = append(req.DeletedIndices, indices...)
		}
	}

	if present {
		body.Media = &req
	}
	return body, nil
}

func isMediaKey(k string) bool {
	for _, m := range mediaKeys {
		if k == m {
			return true
		}
	}
	return false
}

// formValues accepts both "key" and the bracketed "key[]" spelling.
func formValues(form *multipart.Form, key string) []string {
	return append(append([]string(nil), form.Value[key]...), form.Value[key+"[]"]...)
}

func formFiles(form *multipart.Form, key string) []*multipart.FileHeader {
	return append(append([]*multipart.FileHeader(nil), form.File[key]...), form.File[key+"[]"]...)
}

func fileMimeType(fh *multipart.FileHeader) string {
	if ct := fh.Header.Get("Content-Type"); ct != "" && ct != "application/octet-stream" {
		return ct
	}
	if byExt := mime.TypeByExtension(filepath.Ext(fh.Filename)); byExt != "" {
		return byExt
	}
	return fh.Header.Get("Content-Type")
}

func stringList(raw any) ([]string, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{v}, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, badRequest(fmt.Errorf("expected a list of strings, got %v", item))
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, badRequest(fmt.Errorf("expected a string or a list of strings, got %T", raw))
}

// indexList accepts a JSON array of numbers or a string holding one.
func indexList(raw any) ([]int, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		return parseIndices(v)
	case float64:
		i, err := wholeIndex(v)
		if err != nil {
			return nil, err
		}
		return []int{i}, nil
	case []any:
		out := make([]int, 0, len(v))
		for _, item := range v {
			switch n := item.(type) {
			case float64:
				i, err := wholeIndex(n)
				if err != nil {
					return nil, err
				}
				out = append(out, i)
			case string:
				i, err := strconv.Atoi(strings.TrimSpace(n))
				if err != nil {
					return nil, badRequest(fmt.Errorf("invalid media index %q", n))
				}
				out = append(out, i)
			default:
				return nil, badRequest(fmt.Errorf("invalid media index %v", item))
			}
		}
		return out, nil
	}
	return nil, badRequest(fmt.Errorf("deletedMediaIndices must be a list of integers, got %T", raw))
}

func wholeIndex(v float64) (int, error) {
	if v != math.Trunc(v) || math.IsInf(v, 0) {
		return 0, badRequest(fmt.Errorf("invalid media index %v", v))
	}
	return int(v), nil
}

func parseIndices(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if strings.HasPrefix(s, "[") {
		var out []int
		if err := json.Unmarshal([]byte(s), &out); err != nil {
			return nil, badRequest(fmt.Errorf("invalid deletedMediaIndices: %w", err))
		}
		return out, nil
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return nil, badRequest(fmt.Errorf("invalid media index %q", s))
	}
	return []int{i}, nil
}
