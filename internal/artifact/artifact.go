// Package artifact resolves which binary backs a service result: a freshly selected
// local file or a previously persisted remote file.
package artifact

import (
	"context"
	"fmt"
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/jonathan/report-composer/internal/fetch"
	"github.com/jonathan/report-composer/internal/results"
	"github.com/jonathan/report-composer/internal/types"
)

// Media types the composer understands.
const (
	MediaPDF  = "application/pdf"
	MediaJPEG = "image/jpeg"
	MediaPNG  = "image/png"
)

// Origin tells where an artifact comes from.
type Origin int

const (
	OriginLocal Origin = iota
	OriginRemote
)

func (o Origin) String() string {
	if o == OriginRemote {
		return "remote"
	}
	return "local"
}

// Artifact is a resolved result source. Remote artifacts carry no media type until
// they are loaded.
type Artifact struct {
	ServiceID types.ID
	Origin    Origin
	Blob      *results.Blob
	URL       string
	MediaType string
}

// Loaded is an artifact read into memory with its effective media type.
type Loaded struct {
	Artifact
	Data []byte
}

// Resolve picks the artifact of a service: the selected local file wins over the
// persisted remote file. ok is false when neither exists.
func Resolve(serviceID types.ID, state map[types.ID]results.Entry, persisted []types.ServiceResult) (Artifact, bool) {
	if entry, found := state[serviceID]; found && entry.SelectedFile != nil {
		blob := entry.SelectedFile
		mediaType := NormalizeMediaType(blob.ContentType)
		if mediaType == "" || mediaType == "application/octet-stream" {
			mediaType = Sniff(blob.Data)
		}
		return Artifact{
			ServiceID: serviceID,
			Origin:    OriginLocal,
			Blob:      blob,
			MediaType: mediaType,
		}, true
	}

	for _, result := range persisted {
		if result.ServiceID == serviceID && result.ResultFile != "" {
			return Artifact{
				ServiceID: serviceID,
				Origin:    OriginRemote,
				URL:       result.ResultFile,
			}, true
		}
	}

	return Artifact{}, false
}

// Fetcher retrieves remote artifacts.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.Result, error)
}

// Load reads the artifact bytes. For remote artifacts the media type comes from the
// response Content-Type header; the body is sniffed only when the header is absent
// or generic.
func Load(ctx context.Context, a Artifact, fetcher Fetcher) (*Loaded, error) {
	if a.Origin == OriginLocal {
		if a.Blob == nil {
			return nil, fmt.Errorf("local artifact for service %s has no file", a.ServiceID)
		}
		return &Loaded{Artifact: a, Data: a.Blob.Data}, nil
	}

	if fetcher == nil {
		return nil, fmt.Errorf("no fetcher configured for remote artifact %s", a.URL)
	}
	res, err := fetcher.Fetch(ctx, a.URL)
	if err != nil {
		return nil, err
	}

	loaded := &Loaded{Artifact: a, Data: res.Body}
	loaded.MediaType = NormalizeMediaType(res.ContentType)
	if loaded.MediaType == "" || loaded.MediaType == "application/octet-stream" {
		loaded.MediaType = Sniff(res.Body)
	}
	return loaded, nil
}

// NormalizeMediaType strips parameters and lower-cases a Content-Type value.
func NormalizeMediaType(contentType string) string {
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	}
	if mediaType == "image/jpg" || mediaType == "image/pjpeg" {
		return MediaJPEG
	}
	return mediaType
}

// Sniff detects the media type from content.
func Sniff(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	return NormalizeMediaType(mimetype.Detect(data).String())
}

// Supported reports whether the composer can place the media type.
func Supported(mediaType string) bool {
	switch mediaType {
	case MediaPDF, MediaJPEG, MediaPNG:
		return true
	}
	return false
}
