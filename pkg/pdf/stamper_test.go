package pdf

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/jung-kurt/gofpdf"
	qrcode "github.com/skip2/go-qrcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makePDF(t *testing.T, pages int, w, h float64) []byte {
	t.Helper()
	doc := gofpdf.NewCustom(&gofpdf.InitType{UnitStr: "pt", Size: gofpdf.SizeType{Wd: w, Ht: h}})
	doc.SetFont("Helvetica", "", 12)
	for i := 0; i < pages; i++ {
		doc.AddPage()
		doc.Text(72, 72, fmt.Sprintf("page %d", i+1))
	}
	var buf bytes.Buffer
	require.NoError(t, doc.Output(&buf))
	return buf.Bytes()
}

func makePNG(t *testing.T) []byte {
	t.Helper()
	img, err := qrcode.Encode("sig", qrcode.Medium, 64)
	require.NoError(t, err)
	return img
}

func TestPlacement(t *testing.T) {
	tests := []struct {
		name         string
		x, y         float64
		pageW, pageH float64
		wantX, wantY float64
	}{
		// y=0.1 of an 800pt page puts the mark's top edge 80pt from the
		// top, i.e. at 720 in bottom-left user space.
		{"normalized", 0.5, 0.1, 600, 800, 300, 80},
		{"legacy absolute", 150, 30, 600, 800, 150, 30},
		{"legacy when only y exceeds one", 0.5, 30, 600, 800, 0.5, 30},
		{"page corner still reads as normalized", 1, 1, 600, 800, 600, 800},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, top := placement(tt.x, tt.y, tt.pageW, tt.pageH)
			assert.InDelta(t, tt.wantX, x, 0.001)
			assert.InDelta(t, tt.wantY, top, 0.001)
		})
	}
}

func TestStampTextMark(t *testing.T) {
	src := makePDF(t, 1, 600, 800)
	s := NewStamper("")

	out, err := s.Stamp(src, []Mark{{Type: MarkText, Page: 1, X: 0.5, Y: 0.1, Text: "Agreed"}})

	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
	assert.NotEqual(t, src, out)
}

func TestStampTextDefaults(t *testing.T) {
	src := makePDF(t, 1, 600, 800)
	s := NewStamper("")

	// No text and no height: falls back to "Signed" at 12pt.
	_, err := s.Stamp(src, []Mark{{Type: MarkText, Page: 1, X: 0.2, Y: 0.2}})
	require.NoError(t, err)
}

func TestStampSignatureImage(t *testing.T) {
	src := makePDF(t, 2, 600, 800)
	s := NewStamper("")

	out, err := s.Stamp(src, []Mark{{
		Type:  MarkSignature,
		Page:  2,
		X:     0.4,
		Y:     0.7,
		Width: 0.25,
		Image: makePNG(t),
	}})

	require.NoError(t, err)
	assert.NotEqual(t, src, out)
}

func TestStampDateMark(t *testing.T) {
	src := makePDF(t, 1, 600, 800)
	s := NewStamper("02 Jan 2006")
	s.Now = func() time.Time { return time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC) }

	_, err := s.Stamp(src, []Mark{{Type: MarkDate, Page: 1, X: 0.1, Y: 0.9}})
	require.NoError(t, err)
}

func TestStampQROnLastPage(t *testing.T) {
	src := makePDF(t, 3, 612, 792)
	s := NewStamper("")

	out, err := s.Stamp(src, []Mark{{Type: MarkQR, Text: "http://localhost:8080/validate?id=x&checksum=deadbeef"}})

	require.NoError(t, err)
	assert.NotEqual(t, src, out)
}

func TestStampManyMarksOneRebuild(t *testing.T) {
	src := makePDF(t, 2, 600, 800)
	s := NewStamper("")

	out, err := s.Stamp(src, []Mark{
		{Type: MarkText, Page: 1, X: 0.1, Y: 0.1, Text: "first"},
		{Type: MarkText, Page: 2, X: 0.1, Y: 0.1, Text: "second"},
		{Type: MarkSignature, Page: 2, X: 0.5, Y: 0.5, Image: makePNG(t)},
	})

	require.NoError(t, err)
	assert.NotEqual(t, src, out)
}

func TestStampPageOutOfRange(t *testing.T) {
	src := makePDF(t, 2, 600, 800)
	s := NewStamper("")

	_, err := s.Stamp(src, []Mark{{Type: MarkText, Page: 5, X: 0.5, Y: 0.5, Text: "x"}})
	assert.ErrorIs(t, err, ErrInvalidPage)
}

func TestStampMissingImage(t *testing.T) {
	src := makePDF(t, 1, 600, 800)
	s := NewStamper("")

	_, err := s.Stamp(src, []Mark{{Type: MarkSignature, Page: 1, X: 0.5, Y: 0.5}})
	assert.ErrorIs(t, err, ErrMissingAsset)

	_, err = s.Stamp(src, []Mark{{Type: MarkInitial, Page: 1, X: 0.5, Y: 0.5}})
	assert.ErrorIs(t, err, ErrMissingAsset)
}

func TestStampUnreadableSource(t *testing.T) {
	s := NewStamper("")

	_, err := s.Stamp([]byte("not a pdf at all"), []Mark{{Type: MarkText, Page: 1, X: 0.5, Y: 0.5, Text: "x"}})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = s.Stamp(nil, []Mark{{Type: MarkText, Page: 1, X: 0.5, Y: 0.5, Text: "x"}})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestImageType(t *testing.T) {
	assert.Equal(t, "PNG", imageType(makePNG(t)))
	assert.Equal(t, "JPG", imageType([]byte{0xFF, 0xD8, 0xFF, 0xE0}))
}
