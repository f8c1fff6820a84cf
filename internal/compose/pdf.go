package compose

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// Output page size in points (ISO A4).
const (
	PageWidth  = 595.28
	PageHeight = 841.89
)

// ImageScale is applied to the native size of placed result images.
const ImageScale = 0.5

var (
	coverPlacement = fmt.Sprintf("dimensions:%.2f %.2f, position:full", PageWidth, PageHeight)
	imagePlacement = fmt.Sprintf("dimensions:%.2f %.2f, position:c, scalefactor:%.1f abs", PageWidth, PageHeight, ImageScale)
)

var disableConfigDir sync.Once

// newConfiguration returns a fresh pdfcpu configuration. pdfcpu records the running
// command on the configuration, so one is created per call.
func newConfiguration() *model.Configuration {
	disableConfigDir.Do(api.DisableConfigDir)
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// imagePDF places a JPEG or PNG on a new page using the given placement.
func imagePDF(img []byte, placement string) ([]byte, error) {
	imp, err := api.Import(placement, types.POINTS)
	if err != nil {
		return nil, fmt.Errorf("invalid image placement %q: %w", placement, err)
	}
	var buf bytes.Buffer
	if err := api.ImportImages(nil, &buf, []io.Reader{bytes.NewReader(img)}, imp, newConfiguration()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// pageCount reads and validates a PDF and returns its page count.
func pageCount(pdf []byte) (int, error) {
	n, err := api.PageCount(bytes.NewReader(pdf), newConfiguration())
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, fmt.Errorf("document has no pages")
	}
	return n, nil
}

// appendPages appends src to dst and checks that the result holds exactly
// have+pages pages. dst is left untouched on failure.
func appendPages(dst []byte, have int, src []byte, pages int) ([]byte, error) {
	var buf bytes.Buffer
	readers := []io.ReadSeeker{bytes.NewReader(dst), bytes.NewReader(src)}
	if err := api.MergeRaw(readers, &buf, false, newConfiguration()); err != nil {
		return nil, fmt.Errorf("failed to append pages: %w", err)
	}

	n, err := pageCount(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("appended document is not readable: %w", err)
	}
	if n != have+pages {
		return nil, fmt.Errorf("appended document has %d pages, expected %d", n, have+pages)
	}
	return buf.Bytes(), nil
}
