package pdf

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/jung-kurt/gofpdf/contrib/gofpdi"
	qrcode "github.com/skip2/go-qrcode"
)

// MarkType selects what gets burned into the page.
type MarkType string

const (
	MarkSignature MarkType = "signature"
	MarkInitial   MarkType = "initial"
	MarkText      MarkType = "text"
	MarkDate      MarkType = "date"
	MarkQR        MarkType = "qr"
)

var (
	ErrInvalidPage  = errors.New("pdf: page out of range")
	ErrInvalidInput = errors.New("pdf: unreadable source document")
	ErrMissingAsset = errors.New("pdf: mark image required but not provided")
)

const (
	defaultMarkWidth = 100.0 // user-space points
	defaultFontSize  = 12.0
	defaultText      = "Signed"
	qrSize           = 90.0
	qrMargin         = 24.0
)

// Mark is one annotation to place on one page.
//
// X and Y carry a dual convention inherited from stored requests: when both
// are <= 1 they are normalized fractions of the page box with a top-left
// origin; otherwise they are legacy absolute user-space values measured from
// the top of the page. The numeric range is the only disambiguator, so a
// legacy mark within one point of the page edge is indistinguishable from a
// normalized one.
type Mark struct {
	Type   MarkType
	Page   int     // 1-based; 0 selects the last page
	X, Y   float64
	Width  float64 // normalized fraction of page width, optional
	Height float64 // normalized fraction of page height, optional
	Text   string  // text marks; QR marks carry the encoded URL here
	Image  []byte  // signature/initial marks, PNG or JPEG
}

// Stamper rebuilds a PDF with marks burned in. It never touches storage or
// the hash chain; callers persist and rehash the returned bytes.
type Stamper struct {
	DateLayout string           // date mark format, defaults to "02 Jan 2006"
	Now        func() time.Time // injectable clock for date marks
}

func NewStamper(dateLayout string) *Stamper {
	if dateLayout == "" {
		dateLayout = "02 Jan 2006"
	}
	return &Stamper{DateLayout: dateLayout, Now: time.Now}
}

// Stamp imports every page of src as a template, draws each mark on its
// target page and serializes the result. All marks land on one output so a
// batch of placements costs a single rebuild.
func (s *Stamper) Stamp(src []byte, marks []Mark) (out []byte, err error) {
	if len(src) == 0 {
		return nil, ErrInvalidInput
	}
	for _, m := range marks {
		if (m.Type == MarkSignature || m.Type == MarkInitial) && len(m.Image) == 0 {
			return nil, ErrMissingAsset
		}
	}

	// gofpdi panics on malformed input rather than returning an error.
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("%w: %v", ErrInvalidInput, r)
		}
	}()

	doc := gofpdf.New("P", "pt", "A4", "")
	doc.SetAutoPageBreak(false, 0)
	imp := gofpdi.NewImporter()

	rs := io.ReadSeeker(bytes.NewReader(src))
	firstTpl := imp.ImportPageFromStream(doc, &rs, 1, "/MediaBox")
	if doc.Err() {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, doc.Error())
	}

	sizes := imp.GetPageSizes()
	pageCount := len(sizes)
	byPage, err := resolvePages(marks, pageCount)
	if err != nil {
		return nil, err
	}

	for page := 1; page <= pageCount; page++ {
		tpl := firstTpl
		if page > 1 {
			tpl = imp.ImportPageFromStream(doc, &rs, page, "/MediaBox")
		}
		box := sizes[page]["/MediaBox"]
		w, h := box["w"], box["h"]
		doc.AddPageFormat("P", gofpdf.SizeType{Wd: w, Ht: h})
		imp.UseImportedTemplate(doc, tpl, 0, 0, w, h)
		for _, m := range byPage[page] {
			s.draw(doc, m, w, h)
		}
	}
	if doc.Err() {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, doc.Error())
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return buf.Bytes(), nil
}

func resolvePages(marks []Mark, pageCount int) (map[int][]Mark, error) {
	byPage := make(map[int][]Mark, len(marks))
	for _, m := range marks {
		page := m.Page
		if page == 0 {
			page = pageCount
		}
		if page < 1 || page > pageCount {
			return nil, fmt.Errorf("%w: page %d of %d", ErrInvalidPage, page, pageCount)
		}
		byPage[page] = append(byPage[page], m)
	}
	return byPage, nil
}

// placement resolves a mark's coordinates into gofpdf's drawing frame:
// user-space points measured from the top-left corner, where the returned y
// is the top edge of the mark. Both conventions flip the vertical axis the
// same way, so a normalized pair scales by the page box while a legacy pair
// passes through untouched.
func placement(x, y, pageW, pageH float64) (float64, float64) {
	if x <= 1 && y <= 1 {
		return x * pageW, y * pageH
	}
	return x, y
}

func (s *Stamper) draw(doc *gofpdf.Fpdf, m Mark, pageW, pageH float64) {
	x, top := placement(m.X, m.Y, pageW, pageH)

	switch m.Type {
	case MarkSignature, MarkInitial:
		width := defaultMarkWidth
		if m.Width > 0 {
			width = m.Width * pageW
		}
		drawImage(doc, m.Image, x, top, width)

	case MarkText, MarkDate:
		size := defaultFontSize
		if m.Height > 0 {
			size = m.Height * pageH * 0.6
		}
		text := m.Text
		if m.Type == MarkDate {
			text = s.now().Format(s.DateLayout)
		}
		if text == "" {
			text = defaultText
		}
		doc.SetFont("Helvetica", "", size)
		doc.SetTextColor(0, 0, 0)
		doc.Text(x, top+size, text)

	case MarkQR:
		png, err := qrcode.Encode(m.Text, qrcode.Medium, 256)
		if err != nil {
			doc.SetError(err)
			return
		}
		// Fixed spot near the bottom-left corner of the page.
		drawImageAt(doc, png, qrMargin, pageH-qrSize-qrMargin, qrSize, qrSize)
	}
}

// drawImage registers the image under a content-derived name and draws it
// with its top-left corner at (x, top), scaled to width with the aspect
// ratio preserved.
func drawImage(doc *gofpdf.Fpdf, img []byte, x, top, width float64) {
	name, opts := registerImage(doc, img)
	doc.ImageOptions(name, x, top, width, 0, false, opts, 0, "")
}

func drawImageAt(doc *gofpdf.Fpdf, img []byte, x, top, w, h float64) {
	name, opts := registerImage(doc, img)
	doc.ImageOptions(name, x, top, w, h, false, opts, 0, "")
}

func registerImage(doc *gofpdf.Fpdf, img []byte) (string, gofpdf.ImageOptions) {
	sum := sha256.Sum256(img)
	name := "mark-" + hex.EncodeToString(sum[:8])
	opts := gofpdf.ImageOptions{ImageType: imageType(img), ReadDpi: false}
	doc.RegisterImageOptionsReader(name, opts, bytes.NewReader(img))
	return name, opts
}

func imageType(b []byte) string {
	if len(b) >= 3 && b[0] == 0xFF && b[1] == 0xD8 && b[2] == 0xFF {
		return "JPG"
	}
	return "PNG"
}

func (s *Stamper) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
