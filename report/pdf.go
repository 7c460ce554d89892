package report

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// WritePDF renders the report as an A4 PDF at path.
func WritePDF(r *Report, path string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Conversion Report", false)
	pdf.SetCreator("canlog", false)
	pdf.SetMargins(15, 20, 15)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "Conversion Report")
	pdf.Ln(12)

	addSummary(pdf, r)
	addFiles(pdf, r.Files)
	addOutputs(pdf, r.Outputs)

	if pdf.Err() {
		return pdf.Error()
	}
	return pdf.OutputFileAndClose(path)
}

func heading(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, title)
	pdf.Ln(9)
}

func addSummary(pdf *gofpdf.Fpdf, r *Report) {
	heading(pdf, "Summary")

	items := [][2]string{
		{"Run", r.RunID},
		{"Source", r.Source},
		{"Outcome", string(r.Outcome)},
		{"Message", r.Message},
		{"Started", r.StartedAt.UTC().Format(time.RFC3339)},
		{"Duration", (time.Duration(r.DurationMs) * time.Millisecond).String()},
	}
	if !r.Reference.IsZero() {
		items = append(items, [2]string{"Reference", r.Reference.Format(time.RFC3339Nano)})
	}
	if m := r.Metrics; m != nil {
		items = append(items,
			[2]string{"Files", fmt.Sprintf("%d started, %d completed, %d failed", m.FilesStarted, m.FilesCompleted, m.FilesFailed)},
			[2]string{"Frames", fmt.Sprintf("%d parsed, %d skipped, %d unknown ids", m.FramesParsed, m.Skipped(), m.UnknownIDs)},
			[2]string{"Rows", strconv.FormatInt(m.RowsEmitted, 10)},
		)
	}
	if p := r.Policy; p != nil {
		items = append(items, [2]string{"Persistence", fmt.Sprintf("%s: %d persisted, %d dropped", p.Name, p.Persisted, p.Dropped)})
	}

	pdf.SetFont("Helvetica", "", 10)
	for _, item := range items {
		pdf.CellFormat(35, 6, item[0], "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, emptyFallback(item[1], "-"), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)
}

func addFiles(pdf *gofpdf.Fpdf, files []File) {
	heading(pdf, "Input Files")
	if len(files) == 0 {
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, 6, "No input files.", "", "L", false)
		return
	}

	headers := []string{"File", "Format", "Lines", "Parsed", "Skipped", "Rows", "Status"}
	widths := []float64{52, 22, 18, 18, 18, 18, 34}
	tableHeader(pdf, headers, widths)

	pdf.SetFont("Helvetica", "", 9)
	for _, f := range files {
		status := "ok"
		if f.Error != "" {
			status = f.Error
		}
		tableRow(pdf, widths, []string{
			filepath.Base(f.Path),
			f.Format,
			strconv.Itoa(f.Lines),
			strconv.Itoa(f.Parsed),
			strconv.Itoa(f.Skipped),
			strconv.Itoa(f.Rows),
			status,
		}, 5)
	}
	pdf.Ln(4)
}

func addOutputs(pdf *gofpdf.Fpdf, outputs []Output) {
	heading(pdf, "Outputs")
	if len(outputs) == 0 {
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, 6, "No outputs written.", "", "L", false)
		return
	}

	headers := []string{"File", "Rows", "Bytes"}
	widths := []float64{110, 35, 35}
	tableHeader(pdf, headers, widths)

	pdf.SetFont("Helvetica", "", 9)
	for _, o := range outputs {
		tableRow(pdf, widths, []string{
			filepath.Base(o.Path),
			strconv.Itoa(o.Rows),
			strconv.FormatInt(o.Bytes, 10),
		}, 5)
	}
}

func tableHeader(pdf *gofpdf.Fpdf, headers []string, widths []float64) {
	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Helvetica", "B", 10)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)
}

// tableRow draws one row, wrapping long cells and keeping borders aligned.
func tableRow(pdf *gofpdf.Fpdf, widths []float64, values []string, lineHeight float64) {
	xStart, yStart := pdf.GetX(), pdf.GetY()
	maxLines := 1
	cols := make([][]string, len(values))
	for i, val := range values {
		lines := pdf.SplitText(emptyFallback(val, "-"), widths[i]-2)
		if len(lines) == 0 {
			lines = []string{""}
		}
		cols[i] = lines
		maxLines = max(maxLines, len(lines))
	}

	x := xStart
	for i, lines := range cols {
		// Pad so every cell in the row has the same height.
		for len(lines) < maxLines {
			lines = append(lines, "")
		}
		pdf.SetXY(x, yStart)
		pdf.MultiCell(widths[i], lineHeight, strings.Join(lines, "\n"), "1", "L", false)
		x += widths[i]
	}
	pdf.SetXY(xStart, yStart+float64(maxLines)*lineHeight)
}

func emptyFallback(val, fallback string) string {
	if strings.TrimSpace(val) == "" {
		return fallback
	}
	return val
}
