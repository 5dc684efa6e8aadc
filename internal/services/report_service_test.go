package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"strings"
	"testing"

	"device-tracker/internal/models"

	"github.com/xuri/excelize/v2"
)

func reportEnv(t *testing.T) (*ReportService, *memObjectStore, *models.Batch) {
	t.Helper()
	env, batch := packlistEnv(t)
	env.mappedDevice("I1", "S1", "D1")
	env.mappedDevice("I2", "S2", "D2")
	for _, id := range []string{"I1", "I2"} {
		_, err := env.packlists.Assign(context.Background(), models.AssignRequest{
			ID: id, Type: models.AliasIMEI, CartonID: batch.Cartons[0].CartonID,
		}, 1)
		if err != nil {
			t.Fatal(err)
		}
	}
	store := &memObjectStore{}
	return NewReportService(env.packlists, store), store, batch
}

func TestPacklistManifestCSV(t *testing.T) {
	svc, _, batch := reportEnv(t)

	m, err := svc.PacklistManifest(context.Background(), models.FilterBatchID, batch.BatchID, "csv")
	if err != nil {
		t.Fatal(err)
	}
	if m.ContentType != "text/csv" || !strings.HasSuffix(m.Filename, ".csv") {
		t.Errorf("got %s / %s", m.ContentType, m.Filename)
	}
	rows, err := csv.NewReader(bytes.NewReader(m.Data)).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want header + 2", len(rows))
	}
	if rows[1][1] != batch.Cartons[0].CartonID || rows[1][3] != "I1" || rows[2][5] != "D2" {
		t.Errorf("rows %v", rows[1:])
	}
}

func TestPacklistManifestXLSX(t *testing.T) {
	svc, _, batch := reportEnv(t)

	m, err := svc.PacklistManifest(context.Background(), models.FilterCartonID, batch.Cartons[0].CartonID, "xlsx")
	if err != nil {
		t.Fatal(err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(m.Data))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	rows, err := f.GetRows("packlist")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 || rows[2][4] != "S2" {
		t.Errorf("packlist sheet %v", rows)
	}
	count, err := f.GetCellValue("summary", "B4")
	if err != nil || count != "2" {
		t.Errorf("summary count = %q, %v", count, err)
	}
}

func TestPacklistManifestPDFAndArchive(t *testing.T) {
	svc, store, batch := reportEnv(t)
	ctx := context.Background()

	m, err := svc.PacklistManifest(ctx, models.FilterBatchID, batch.BatchID, "pdf")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(m.Data, []byte("%PDF")) {
		t.Error("output is not a PDF")
	}
	if err := svc.ArchiveManifest(ctx, m); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(m.URL, "https://files.example.com/manifests/") {
		t.Errorf("url %s", m.URL)
	}
	if len(store.objects) != 1 {
		t.Errorf("got %d uploaded objects", len(store.objects))
	}
}

func TestPacklistManifestErrors(t *testing.T) {
	svc, _, batch := reportEnv(t)
	ctx := context.Background()

	if _, err := svc.PacklistManifest(ctx, models.FilterBatchID, batch.BatchID, "docx"); !errors.Is(err, models.ErrValidation) {
		t.Errorf("unknown format: got %v", err)
	}
	if _, err := svc.PacklistManifest(ctx, models.FilterShipmentDate, "1999-01-01", "csv"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("empty result: got %v", err)
	}

	noArchive := NewReportService(svc.Packlists, nil)
	if err := noArchive.ArchiveManifest(ctx, &Manifest{Filename: "x.csv"}); !errors.Is(err, models.ErrValidation) {
		t.Errorf("archive without storage: got %v", err)
	}
}

func TestSanitizeFilename(t *testing.T) {
	if got := sanitizeFilename("2026-03-14T10:00/x"); got != "2026-03-14T10_00_x" {
		t.Errorf("got %q", got)
	}
}
