// Package certificate draws the testimonial and transfer certificate PDFs.
package certificate

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/noah-isme/certdesk-go-api/internal/records"
)

// Layout constants in millimetres on an A4 portrait page.
const (
	pageHeight   = 297.0
	marginLeft   = 25.0
	marginRight  = 25.0
	marginBottom = 20.0
	contentWidth = 210.0 - marginLeft - marginRight

	titleWidth  = 120.0
	titleHeight = 18.0
	titleTop    = 42.0
	titleRadius = 2.1

	tableTop     = 80.0
	keyWidth     = 30.0
	valueWidth   = 55.0
	rowHeight    = 9.0
	introGap     = 10.0
	introHeight  = 8.0
	lineHeight   = 5.0
	signatureTop = 187.0
	signatureGap = 15.0
	ruleWidth    = 60.0
	signatureLH  = 4.2
)

// Config holds the institution details printed on every certificate.
type Config struct {
	Institution    string
	Signatory      string
	SignatoryTitle string
	// CreationDate pins the PDF creation timestamp; zero means now.
	CreationDate time.Time
}

// Request describes one certificate to draw.
type Request struct {
	Kind   Kind
	Record records.Record
	Gender Gender
	// Date is printed in the table as given, typically DD/MM/YYYY.
	Date string
}

// Renderer produces certificate PDFs.
type Renderer struct {
	cfg Config
}

// NewRenderer constructs a renderer, filling defaults for empty fields.
func NewRenderer(cfg Config) *Renderer {
	if cfg.Institution == "" {
		cfg.Institution = "Daffodil University School & College"
	}
	if cfg.Signatory == "" {
		cfg.Signatory = "SK Mahmudun Nabi"
	}
	if cfg.SignatoryTitle == "" {
		cfg.SignatoryTitle = "Principal (Acting)"
	}
	return &Renderer{cfg: cfg}
}

// Institution returns the configured institution name.
func (r *Renderer) Institution() string {
	return r.cfg.Institution
}

// Render writes the PDF for req to w.
func (r *Renderer) Render(w io.Writer, req Request) error {
	pdf, err := r.document(req)
	if err != nil {
		return err
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func (r *Renderer) document(req Request) (*fpdf.Fpdf, error) {
	paragraph, err := Paragraph(req.Kind, req.Record, req.Gender, r.cfg.Institution)
	if err != nil {
		return nil, err
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(marginLeft, marginBottom, marginRight)
	pdf.SetAutoPageBreak(true, marginBottom)
	pdf.SetTitle(req.Kind.Title(), true)
	pdf.SetAuthor(r.cfg.Institution, true)
	pdf.SetCreator("certdesk", false)
	if !r.cfg.CreationDate.IsZero() {
		pdf.SetCreationDate(r.cfg.CreationDate)
		pdf.SetModificationDate(r.cfg.CreationDate)
	}
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()

	pdf.SetLineWidth(0.35)
	titleLeft := (210.0 - titleWidth) / 2
	pdf.RoundedRect(titleLeft, titleTop, titleWidth, titleHeight, titleRadius, "1234", "D")
	pdf.SetFont("Times", "B", 17)
	pdf.SetXY(titleLeft, titleTop)
	pdf.CellFormat(titleWidth, titleHeight, tr(req.Kind.Title()), "", 0, "C", false, 0, "")

	keys := []string{"S/N", "Date", "ID No", "Class", "Session"}
	values := []string{
		strconv.Itoa(req.Record.Serial),
		req.Date,
		req.Record.ID,
		req.Record.Class,
		req.Record.Session,
	}
	pdf.SetFont("Times", "", 12)
	pdf.SetXY(marginLeft, tableTop)
	for i, key := range keys {
		pdf.CellFormat(keyWidth, rowHeight, tr(key), "1", 0, "L", false, 0, "")
		pdf.CellFormat(valueWidth, rowHeight, tr(values[i]), "1", 1, "L", false, 0, "")
	}

	introTop := tableTop + float64(len(keys))*rowHeight + introGap
	pdf.SetFont("Times", "B", 17)
	pdf.SetXY(marginLeft, introTop)
	pdf.CellFormat(contentWidth, introHeight, tr("This is to certify that"), "", 1, "C", false, 0, "")

	pdf.SetFont("Times", "", 12)
	pdf.SetXY(marginLeft, introTop+introHeight+2)
	pdf.MultiCell(contentWidth, lineHeight, tr(paragraph), "", "J", false)

	r.drawSignature(pdf, tr, pdf.GetY())

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("draw pdf: %w", err)
	}
	return pdf, nil
}

// drawSignature places the signature block at its usual height, or below a
// long paragraph, moving to a new page when it would not fit.
func (r *Renderer) drawSignature(pdf *fpdf.Fpdf, tr func(string) string, paragraphEnd float64) {
	lines := []string{r.cfg.Signatory, r.cfg.SignatoryTitle, r.cfg.Institution}
	blockHeight := float64(len(lines)+1) * signatureLH

	top := signatureTop
	if paragraphEnd+signatureGap > top {
		top = paragraphEnd + signatureGap
	}
	if top+blockHeight > pageHeight-marginBottom {
		pdf.AddPage()
		top = marginBottom + signatureGap
	}

	pdf.Line(marginLeft, top, marginLeft+ruleWidth, top)
	pdf.SetFont("Times", "", 12)
	for i, line := range lines {
		pdf.Text(marginLeft, top+float64(i+1)*signatureLH, tr(line))
	}
}
