package rendering

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"time"
	"unicode/utf8"

	"github.com/fogleman/gg"
	"github.com/goodsign/monday"

	"github.com/jonathan/report-composer/internal/types"
)

// Cover raster dimensions: A4 at roughly 300 DPI.
const (
	CoverWidth  = 2480
	CoverHeight = 3508
)

// MaxLabelRunes is the longest service label drawn before truncation.
const MaxLabelRunes = 30

const (
	borderOuter    = 60.0
	borderInner    = 96.0
	contentLeft    = 220.0
	contentRight   = CoverWidth - 220.0
	logoTop        = 180.0
	logoMaxHeight  = 260.0
	logoGap        = 80.0
	noLogoOffset   = 260.0
	tableRowHeight = 120.0
	tableHeaderGap = 40.0
	footerTop      = CoverHeight - 360.0
)

var (
	colorBackground = color.RGBA{0xFF, 0xFF, 0xFF, 0xFF}
	colorFrame      = color.RGBA{0x1E, 0x3A, 0x5F, 0xFF}
	colorAccent     = color.RGBA{0x14, 0xB8, 0xA6, 0xFF}
	colorMuted      = color.RGBA{0x64, 0x74, 0x8B, 0xFF}
	colorText       = color.RGBA{0x0F, 0x17, 0x2A, 0xFF}
	colorRowEven    = color.RGBA{0xF1, 0xF5, 0xF9, 0xFF}
	colorRowOdd     = color.RGBA{0xFF, 0xFF, 0xFF, 0xFF}
	colorPass       = color.RGBA{0x16, 0xA3, 0x4A, 0xFF}
	colorFail       = color.RGBA{0xDC, 0x26, 0x26, 0xFF}
)

// ServiceOutcome is one row of the cover table.
type ServiceOutcome struct {
	Label  string
	Status types.Status
}

// CoverData is everything drawn on the cover.
type CoverData struct {
	CandidateName  string
	CandidateEmail string
	CompanyName    string
	TrackingNumber string
	IssuedAt       time.Time
	Services       []ServiceOutcome
}

// Options controls assets and localisation of the cover.
type Options struct {
	LogoPath   string
	Locale     string
	DateLayout string
	Footer     []string
}

// DefaultOptions returns the cover defaults.
func DefaultOptions() Options {
	return Options{
		Locale:     string(monday.LocaleEnUS),
		DateLayout: "January 2, 2006",
		Footer: []string{
			"This report is confidential and intended solely for the named recipient.",
			"Results reflect the information available at the time of verification.",
		},
	}
}

// RenderCover draws the cover page. Missing logo, name or company degrade the
// layout; an unknown status or a surface that cannot be allocated fails the render.
func RenderCover(data CoverData, opts Options) (image.Image, error) {
	for _, svc := range data.Services {
		if !svc.Status.Known() {
			return nil, &RenderError{
				Message: fmt.Sprintf("service %q has status %q", svc.Label, svc.Status),
				Cause:   ErrUnknownStatus,
			}
		}
	}
	if err := loadFonts(); err != nil {
		return nil, &RenderError{Message: "failed to load fonts", Cause: err}
	}

	dc, err := allocSurface(CoverWidth, CoverHeight)
	if err != nil {
		return nil, err
	}

	opts = withDefaults(opts)
	faces := newFaceSet()
	defer faces.close()

	c := &coverCanvas{dc: dc, faces: faces}

	c.background()
	c.frame()
	y := c.logo(opts.LogoPath)
	y = c.divider(y)
	y = c.title(y)
	y = c.recipient(y, data)
	y = c.metadata(y, data, opts)
	c.table(y, data.Services)
	c.footer(opts.Footer)

	return dc.Image(), nil
}

// newContext allocates the drawing surface.
var newContext = gg.NewContext

// allocSurface turns an allocation panic into a RenderError. Panics raised while
// drawing are not recovered.
func allocSurface(w, h int) (dc *gg.Context, err error) {
	defer func() {
		if r := recover(); r != nil {
			dc = nil
			err = &RenderError{Message: "failed to allocate cover surface", Cause: fmt.Errorf("%v", r)}
		}
	}()
	return newContext(w, h), nil
}

// RenderCoverPNG renders the cover and encodes it as PNG.
func RenderCoverPNG(data CoverData, opts Options) ([]byte, error) {
	img, err := RenderCover(data, opts)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := EncodePNG(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodePNG writes img as PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	if err := png.Encode(w, img); err != nil {
		return &RenderError{Message: "failed to encode cover PNG", Cause: err}
	}
	return nil
}

// TruncateLabel shortens a label to MaxLabelRunes runes followed by an ellipsis.
func TruncateLabel(label string) string {
	if utf8.RuneCountInString(label) <= MaxLabelRunes {
		return label
	}
	runes := []rune(label)
	return string(runes[:MaxLabelRunes]) + "..."
}

// StatusColor returns the table color of a status.
func StatusColor(s types.Status) color.Color {
	if s == types.StatusFail {
		return colorFail
	}
	return colorPass
}

func withDefaults(opts Options) Options {
	def := DefaultOptions()
	if opts.Locale == "" {
		opts.Locale = def.Locale
	}
	if opts.DateLayout == "" {
		opts.DateLayout = def.DateLayout
	}
	if opts.Footer == nil {
		opts.Footer = def.Footer
	}
	return opts
}

type coverCanvas struct {
	dc    *gg.Context
	faces *faceSet
}

func (c *coverCanvas) text(s string, x, y float64, size float64, bold bool, col color.Color, ax float64) {
	c.dc.SetFontFace(c.faces.get(bold, size))
	c.dc.SetColor(col)
	c.dc.DrawStringAnchored(s, x, y, ax, 0)
}

func (c *coverCanvas) background() {
	c.dc.SetColor(colorBackground)
	c.dc.Clear()
}

func (c *coverCanvas) frame() {
	c.dc.SetColor(colorFrame)
	c.dc.SetLineWidth(14)
	c.dc.DrawRectangle(borderOuter, borderOuter, CoverWidth-2*borderOuter, CoverHeight-2*borderOuter)
	c.dc.Stroke()

	c.dc.SetColor(colorAccent)
	c.dc.SetLineWidth(4)
	c.dc.DrawRectangle(borderInner, borderInner, CoverWidth-2*borderInner, CoverHeight-2*borderInner)
	c.dc.Stroke()
}

// logo draws the logo centered at the top and returns the y below it.
func (c *coverCanvas) logo(path string) float64 {
	if path == "" {
		return noLogoOffset
	}
	img, err := gg.LoadImage(path)
	if err != nil {
		return noLogoOffset
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return noLogoOffset
	}

	scale := logoMaxHeight / float64(b.Dy())
	c.dc.Push()
	c.dc.Translate(CoverWidth/2, logoTop)
	c.dc.Scale(scale, scale)
	c.dc.DrawImageAnchored(img, 0, 0, 0.5, 0)
	c.dc.Pop()

	return logoTop + logoMaxHeight + logoGap
}

func (c *coverCanvas) divider(y float64) float64 {
	grad := gg.NewLinearGradient(contentLeft, y, contentRight, y)
	grad.AddColorStop(0, colorFrame)
	grad.AddColorStop(1, colorAccent)
	c.dc.SetFillStyle(grad)
	c.dc.DrawRectangle(contentLeft, y, contentRight-contentLeft, 10)
	c.dc.Fill()
	return y + 10
}

func (c *coverCanvas) title(y float64) float64 {
	y += 150
	c.text("REPORT", CoverWidth/2, y, 56, false, colorMuted, 0.5)
	y += 150
	c.text("Background Check Report", CoverWidth/2, y, 112, true, colorFrame, 0.5)
	return y + 80
}

func (c *coverCanvas) recipient(y float64, data CoverData) float64 {
	y += 110
	c.text("Prepared for", contentLeft, y, 48, false, colorMuted, 0)

	name := data.CandidateName
	if name == "" {
		name = "Unnamed candidate"
	}
	y += 110
	c.text(name, contentLeft, y, 80, true, colorText, 0)

	if data.CandidateEmail != "" {
		y += 90
		c.text(data.CandidateEmail, contentLeft, y, 52, false, colorText, 0)
	}
	if data.CompanyName != "" {
		y += 80
		c.text(data.CompanyName, contentLeft, y, 52, false, colorMuted, 0)
	}
	return y + 60
}

func (c *coverCanvas) metadata(y float64, data CoverData, opts Options) float64 {
	issued := data.IssuedAt
	if issued.IsZero() {
		issued = time.Now()
	}
	date := monday.Format(issued, opts.DateLayout, monday.Locale(opts.Locale))

	y += 90
	c.text("Issue date", contentLeft, y, 44, false, colorMuted, 0)
	c.text("Reference number", CoverWidth/2, y, 44, false, colorMuted, 0)
	y += 80
	c.text(date, contentLeft, y, 56, true, colorText, 0)
	ref := data.TrackingNumber
	if ref == "" {
		ref = "-"
	}
	c.text(ref, CoverWidth/2, y, 56, true, colorText, 0)
	return y + 100
}

// table draws the header row and one row per service. Rows are not capped; the
// table grows downward with the service count.
func (c *coverCanvas) table(y float64, services []ServiceOutcome) {
	width := contentRight - contentLeft
	padding := 40.0

	c.dc.SetColor(colorFrame)
	c.dc.DrawRectangle(contentLeft, y, width, tableRowHeight)
	c.dc.Fill()
	baseline := y + tableRowHeight/2 + 20
	c.text("Service", contentLeft+padding, baseline, 52, true, colorBackground, 0)
	c.text("Result", contentRight-padding, baseline, 52, true, colorBackground, 1)

	y += tableRowHeight + tableHeaderGap
	for i, svc := range services {
		rowColor := colorRowEven
		if i%2 == 1 {
			rowColor = colorRowOdd
		}
		c.dc.SetColor(rowColor)
		c.dc.DrawRectangle(contentLeft, y, width, tableRowHeight)
		c.dc.Fill()

		baseline = y + tableRowHeight/2 + 18
		c.text(TruncateLabel(svc.Label), contentLeft+padding, baseline, 48, false, colorText, 0)
		c.text(string(svc.Status), contentRight-padding, baseline, 48, true, StatusColor(svc.Status), 1)
		y += tableRowHeight
	}
}

func (c *coverCanvas) footer(lines []string) {
	c.dc.SetColor(colorMuted)
	c.dc.SetLineWidth(3)
	c.dc.DrawLine(contentLeft, footerTop, contentRight, footerTop)
	c.dc.Stroke()

	y := footerTop + 90
	for _, line := range lines {
		c.text(line, CoverWidth/2, y, 38, false, colorMuted, 0.5)
		y += 60
	}
}
