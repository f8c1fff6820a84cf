// Package compose merges a cover page and per-service result artifacts into one
// paginated PDF report.
package compose

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jonathan/report-composer/internal/artifact"
	"github.com/jonathan/report-composer/internal/rendering"
)

// Item is one service block of the report. A nil Artifact means the service could
// not be resolved and is recorded as skipped.
type Item struct {
	Label    string
	Artifact *artifact.Artifact
}

// Composer converts items and merges them behind a cover page.
type Composer struct {
	fetcher artifact.Fetcher
	logger  *zap.Logger
}

// New creates a Composer. fetcher is used for remote artifacts.
func New(fetcher artifact.Fetcher, logger *zap.Logger) *Composer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Composer{fetcher: fetcher, logger: logger}
}

// Compose builds the report: the cover image on page 1, then the pages of every
// convertible item in input order. Items that cannot be fetched, are of an
// unsupported type, cannot be parsed or cannot be appended are skipped and
// reported on the document. Only a cover that cannot be placed fails the call.
func (c *Composer) Compose(ctx context.Context, coverPNG []byte, items []Item) (*Document, error) {
	merged, err := imagePDF(coverPNG, coverPlacement)
	if err != nil {
		return nil, &rendering.RenderError{Message: "failed to place cover image", Cause: err}
	}

	doc := &Document{
		Pages: []PageSource{{Label: "cover", Kind: PageCover, Page: 1}},
	}

	for _, item := range items {
		out := c.Convert(ctx, item)
		if ok, isOk := out.(Ok); isOk {
			next, err := appendPages(merged, len(doc.Pages), ok.fragment, ok.Pages)
			if err != nil {
				out = Skipped{Label: ok.Label, Reason: ReasonUnparsable, Err: err}
			} else {
				merged = next
				kind := PagePDF
				if ok.MediaType != artifact.MediaPDF {
					kind = PageImage
				}
				for p := 1; p <= ok.Pages; p++ {
					doc.Pages = append(doc.Pages, PageSource{Label: ok.Label, Kind: kind, Page: p})
				}
			}
		}

		if skipped, isSkipped := out.(Skipped); isSkipped {
			c.logger.Warn("Skipping artifact",
				zap.String("label", skipped.Label),
				zap.String("reason", skipped.Reason),
				zap.Error(skipped.Err))
			doc.Skipped = append(doc.Skipped, skipped)
		}
	}

	doc.Data = merged
	doc.PageCount = len(doc.Pages)

	c.logger.Info("Composed report",
		zap.Int("pages", doc.PageCount),
		zap.Int("items", len(items)),
		zap.Int("skipped", len(doc.Skipped)))

	return doc, nil
}

// Convert turns one item into an Ok fragment or a Skipped record. It never fails
// the whole composition.
func (c *Composer) Convert(ctx context.Context, item Item) Outcome {
	if item.Artifact == nil {
		return Skipped{Label: item.Label, Reason: ReasonUnresolved}
	}

	loaded, err := artifact.Load(ctx, *item.Artifact, c.fetcher)
	if err != nil {
		return Skipped{Label: item.Label, Reason: ReasonFetchFailed, Err: err}
	}

	switch loaded.MediaType {
	case artifact.MediaPDF:
		n, err := pageCount(loaded.Data)
		if err != nil {
			return Skipped{Label: item.Label, Reason: ReasonUnparsable, Err: err}
		}
		return Ok{Label: item.Label, MediaType: loaded.MediaType, Origin: loaded.Origin, Pages: n, fragment: loaded.Data}
	case artifact.MediaJPEG, artifact.MediaPNG:
		page, err := imagePDF(loaded.Data, imagePlacement)
		if err != nil {
			return Skipped{Label: item.Label, Reason: ReasonUnparsable, Err: err}
		}
		return Ok{Label: item.Label, MediaType: loaded.MediaType, Origin: loaded.Origin, Pages: 1, fragment: page}
	default:
		mediaType := loaded.MediaType
		if mediaType == "" {
			mediaType = "undetermined"
		}
		return Skipped{Label: item.Label, Reason: ReasonUnsupported, Err: fmt.Errorf("media type %s", mediaType)}
	}
}
