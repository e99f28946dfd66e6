package agent

import (
	"bytes"
	"fmt"

	"github.com/phpdave11/gofpdf"
)

// gofpdfCompiler renders reports via direct text + image composition,
// the default PDFCompiler since gofpdf is the only real PDF library
// present in the corpus (no LaTeX toolchain dependency required).
type gofpdfCompiler struct{}

func newGofpdfCompiler() *gofpdfCompiler { return &gofpdfCompiler{} }

func (c *gofpdfCompiler) Render(title string, style map[string]any, sections []renderedSection) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(title, false)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 18)
	pdf.MultiCell(0, 10, title, "", "C", false)
	pdf.Ln(6)

	for i, s := range sections {
		if s.Heading != "" {
			pdf.SetFont("Arial", "B", 13)
			pdf.MultiCell(0, 8, s.Heading, "", "L", false)
		}
		if s.ImageEmbed {
			if err := embedSectionImage(pdf, s, i); err != nil {
				// Fall back to prose per §4.7 Safety rather than abort;
				// gofpdf's error flag is sticky, so clear it before
				// continuing to the next section.
				pdf.SetError(nil)
				pdf.SetFont("Arial", "", 11)
				pdf.MultiCell(0, 6, s.Content, "", "L", false)
			}
		} else if s.Content != "" {
			pdf.SetFont("Arial", "", 11)
			pdf.MultiCell(0, 6, s.Content, "", "L", false)
		}
		if s.Caption != "" {
			pdf.SetFont("Arial", "I", 9)
			pdf.MultiCell(0, 5, s.Caption, "", "C", false)
		}
		pdf.Ln(4)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func embedSectionImage(pdf *gofpdf.Fpdf, s renderedSection, index int) error {
	name := fmt.Sprintf("section-%d.png", index)
	reader := bytes.NewReader(s.ImageBytes)
	opts := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}
	pdf.RegisterImageOptionsReader(name, opts, reader)
	if pdf.Err() {
		return pdf.Error()
	}
	pdf.ImageOptions(name, 10, pdf.GetY(), 190, 0, true, opts, 0, "")
	if pdf.Err() {
		return pdf.Error()
	}
	return nil
}
