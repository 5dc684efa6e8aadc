package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"sort"
	"strings"

	"device-tracker/internal/models"
	"device-tracker/internal/ports"
	"device-tracker/internal/timeutil"

	"github.com/jung-kurt/gofpdf/v2"
	"github.com/xuri/excelize/v2"
)

// Manifest formats
const (
	FormatCSV  = "csv"
	FormatPDF  = "pdf"
	FormatXLSX = "xlsx"
)

// Manifest is a rendered packlist document.
type Manifest struct {
	Filename    string
	ContentType string
	Data        []byte
	URL         string `json:"url,omitempty"`
}

// ReportService renders packlist manifests and archives them on request.
type ReportService struct {
	Packlists *PacklistService
	Archive   ports.ObjectStore
}

func NewReportService(packlists *PacklistService, archive ports.ObjectStore) *ReportService {
	return &ReportService{Packlists: packlists, Archive: archive}
}

// PacklistManifest renders the entries selected by filter/value.
func (s *ReportService) PacklistManifest(ctx context.Context, filter models.PacklistFilter, value, format string) (*Manifest, error) {
	entries, err := s.Packlists.Query(ctx, filter, value)
	if err != nil {
		return nil, err
	}

	title := fmt.Sprintf("Packlist - %s %s", filter, value)
	base := fmt.Sprintf("packlist_%s_%s", filter, sanitizeFilename(value))

	var m Manifest
	switch strings.ToLower(format) {
	case FormatCSV, "":
		m.Data, err = PacklistCSV(entries)
		m.Filename, m.ContentType = base+".csv", "text/csv"
	case FormatPDF:
		m.Data, err = PacklistPDF(title, entries)
		m.Filename, m.ContentType = base+".pdf", "application/pdf"
	case FormatXLSX:
		m.Data, err = PacklistXLSX(title, entries)
		m.Filename, m.ContentType = base+".xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return nil, models.NewValidationError("format", "unsupported format %q", format)
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ArchiveManifest uploads a manifest under manifests/<date>/ and records its URL.
func (s *ReportService) ArchiveManifest(ctx context.Context, m *Manifest) error {
	if s.Archive == nil {
		return models.NewValidationError("archive", "object storage is not configured")
	}
	key := fmt.Sprintf("manifests/%s/%s", timeutil.Now().Format(timeutil.DateLayout), m.Filename)
	url, err := s.Archive.Upload(ctx, key, m.ContentType, m.Data)
	if err != nil {
		return &models.UnavailableError{Op: "manifest.upload", Err: err}
	}
	m.URL = url
	log.Printf("[Report] archived %s (%d bytes)", key, len(m.Data))
	return nil
}

var manifestHeader = []string{"#", "Carton", "Batch", "IMEI", "Serial No", "Device ID", "Shipment Date"}

func manifestRow(i int, p *models.Packlist) []string {
	return []string{
		fmt.Sprintf("%d", i+1),
		p.CartonID,
		p.BatchID,
		p.IMEI,
		p.SerialNo,
		p.DeviceID,
		p.ShipmentDate.In(timeutil.Location).Format(timeutil.DateLayout),
	}
}

// PacklistCSV renders entries as CSV with a header row.
func PacklistCSV(entries []*models.Packlist) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	w.Write(manifestHeader)
	for i, p := range entries {
		w.Write(manifestRow(i, p))
	}

	w.Flush()
	return buf.Bytes(), w.Error()
}

// PacklistPDF renders a table of entries with per-carton counts.
func PacklistPDF(title string, entries []*models.Packlist) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(277, 10, title, "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(277, 6, fmt.Sprintf("Generated: %s", timeutil.Now().Format(timeutil.DisplayLayout)), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	widths := []float64{12, 45, 35, 50, 50, 40, 45}
	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Arial", "B", 10)
	for i, h := range manifestHeader {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for i, p := range entries {
		for j, cell := range manifestRow(i, p) {
			pdf.CellFormat(widths[j], 6, cell, "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	pdf.Ln(4)
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(277, 6, fmt.Sprintf("Devices: %d", len(entries)), "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	for _, c := range cartonCounts(entries) {
		pdf.CellFormat(277, 5, fmt.Sprintf("%s: %d", c.carton, c.count), "", 1, "L", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// PacklistXLSX renders an entries sheet and a per-carton summary sheet.
func PacklistXLSX(title string, entries []*models.Packlist) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	entriesSheet := "packlist"
	summarySheet := "summary"
	f.SetSheetName("Sheet1", entriesSheet)
	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, err
	}

	for j, h := range manifestHeader {
		cell, _ := excelize.CoordinatesToCellName(j+1, 1)
		_ = f.SetCellValue(entriesSheet, cell, h)
	}
	for i, p := range entries {
		for j, v := range manifestRow(i, p) {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
			_ = f.SetCellValue(entriesSheet, cell, v)
		}
	}

	_ = f.SetCellValue(summarySheet, "A1", title)
	_ = f.SetCellValue(summarySheet, "A3", "Carton")
	_ = f.SetCellValue(summarySheet, "B3", "Devices")
	for i, c := range cartonCounts(entries) {
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", i+4), c.carton)
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", i+4), c.count)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type cartonTally struct {
	carton string
	count  int
}

func cartonCounts(entries []*models.Packlist) []cartonTally {
	counts := make(map[string]int)
	for _, p := range entries {
		counts[p.CartonID]++
	}
	out := make([]cartonTally, 0, len(counts))
	for c, n := range counts {
		out = append(out, cartonTally{carton: c, count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].carton < out[j].carton })
	return out
}

func sanitizeFilename(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		}
		return '_'
	}, s)
}
