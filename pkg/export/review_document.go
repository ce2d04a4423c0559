package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// ReviewDocument holds the fields rendered onto an unsigned review sheet.
type ReviewDocument struct {
	Title         string
	StudentName   string
	Faculty       string
	DegreeLevel   string
	ReviewerName  string
	ReviewerRole  string
	Iteration     int
	Comments      string
	Assessment    string
	SubmittedDate time.Time
}

// ReviewDocumentRenderer produces the system-generated review sheet that a
// reviewing party later signs and re-uploads.
type ReviewDocumentRenderer struct{}

// NewReviewDocumentRenderer constructs a renderer.
func NewReviewDocumentRenderer() *ReviewDocumentRenderer {
	return &ReviewDocumentRenderer{}
}

// Render builds the review sheet PDF.
func (r *ReviewDocumentRenderer) Render(doc ReviewDocument) ([]byte, error) {
	if doc.Title == "" {
		return nil, fmt.Errorf("review document requires a thesis title")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, "THESIS REVIEW REPORT", "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 8, strings.ToUpper(doc.ReviewerRole)+" ASSESSMENT", "", 1, "C", false, 0, "")
	pdf.Ln(6)

	writeField := func(label, value string) {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(45, 7, label, "", 0, "", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.MultiCell(0, 7, value, "", "", false)
	}

	writeField("Thesis", doc.Title)
	writeField("Student", doc.StudentName)
	writeField("Faculty", doc.Faculty)
	writeField("Degree level", doc.DegreeLevel)
	writeField("Reviewer", fmt.Sprintf("%s (%s)", doc.ReviewerName, doc.ReviewerRole))
	writeField("Review iteration", fmt.Sprintf("%d", doc.Iteration))
	writeField("Date", doc.SubmittedDate.Format("2 January 2006"))
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(0, 7, "Comments", "", 1, "", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	comments := doc.Comments
	if comments == "" {
		comments = "-"
	}
	pdf.MultiCell(0, 6, comments, "1", "", false)
	pdf.Ln(4)

	if doc.Assessment != "" {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(0, 7, "Final assessment", "", 1, "", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.MultiCell(0, 6, doc.Assessment, "1", "", false)
		pdf.Ln(4)
	}

	pdf.Ln(12)
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(90, 7, "Signature:", "", 0, "", false, 0, "")
	pdf.CellFormat(0, 7, "Date:", "", 1, "", false, 0, "")
	pdf.Ln(10)
	pdf.CellFormat(90, 7, "_________________________", "", 0, "", false, 0, "")
	pdf.CellFormat(0, 7, "_________________________", "", 1, "", false, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render review document: %w", err)
	}
	return buf.Bytes(), nil
}
