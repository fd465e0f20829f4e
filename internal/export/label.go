package export

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"strings"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
	"github.com/jung-kurt/gofpdf"
)

// ErrUnencodable is returned when a barcode value has no Code128 encoding.
var ErrUnencodable = errors.New("barcode value cannot be encoded")

// Label is the content of one item label.
type Label struct {
	ItemName string
	Barcode  string
	Branch   string
}

// ItemLabel renders a single landscape label page with a scannable Code128
// barcode of the item's barcode value.
func ItemLabel(l Label) ([]byte, error) {
	value := strings.TrimSpace(l.Barcode)
	if value == "" {
		return nil, ErrUnencodable
	}
	barcodePNG, err := renderCode128PNG(value, 1200, 260)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnencodable, err)
	}

	name := strings.TrimSpace(l.ItemName)
	if name == "" {
		name = "Unnamed Item"
	}

	pdf := gofpdf.New("L", "mm", "A6", "")
	pdf.SetTitle("Item Label", false)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	pageW, _ := pdf.GetPageSize()
	margin := 8.0

	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetTextColor(80, 80, 80)
	pdf.SetXY(margin, margin)
	pdf.CellFormat(pageW-2*margin, 5, l.Branch, "", 1, "R", false, 0, "")

	pdf.SetTextColor(0, 0, 0)
	size := fitFontSizeForWidth(pdf, "Helvetica", "B", 20, 9, name, pageW-2*margin)
	pdf.SetFont("Helvetica", "B", size)
	pdf.SetX(margin)
	pdf.CellFormat(pageW-2*margin, 12, name, "", 1, "C", false, 0, "")

	opt := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
	pdf.RegisterImageOptionsReader("item-barcode", opt, bytes.NewReader(barcodePNG))
	imgW := pageW - 2*margin
	imgH := 30.0
	y := 36.0
	pdf.ImageOptions("item-barcode", margin, y, imgW, imgH, false, opt, 0, "")

	pdf.SetY(y + imgH + 3)
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, value, "", 1, "C", false, 0, "")

	return output(pdf)
}

func output(pdf *gofpdf.Fpdf) ([]byte, error) {
	if err := pdf.Error(); err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func fitFontSizeForWidth(pdf *gofpdf.Fpdf, family, style string, base, min float64, text string, maxWidth float64) float64 {
	if maxWidth <= 0 {
		return min
	}
	size := base
	pdf.SetFont(family, style, size)
	for size > min && pdf.GetStringWidth(text) > maxWidth {
		size -= 0.5
		pdf.SetFont(family, style, size)
	}
	return size
}

func renderCode128PNG(value string, width, height int) ([]byte, error) {
	code, err := code128.Encode(value)
	if err != nil {
		return nil, err
	}
	scaled, err := barcode.Scale(code, width, height)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, toNRGBA(scaled)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func toNRGBA(src image.Image) *image.NRGBA {
	bounds := src.Bounds()
	dst := image.NewNRGBA(bounds)
	draw.Draw(dst, bounds, src, bounds.Min, draw.Src)
	return dst
}
