package report

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lehigh-university-libraries/scanfolders/internal/upload"
	"github.com/parquet-go/parquet-go"
	"gopkg.in/yaml.v3"
)

func sampleResult() upload.Result {
	return upload.Result{
		Outcomes: []upload.Outcome{
			{Folder: "b", FileName: "2.jpg", Key: "2.jpg", Locator: "/x/2.jpg", Progress: 0.4, Bytes: 40, Duration: 2 * time.Second, Err: errors.New("connection reset")},
			{Folder: "a", FileName: "1.jpg", Key: "1.jpg", Locator: "/x/1.jpg", Uploaded: true, Progress: 1, Bytes: 100, Duration: 1500 * time.Millisecond},
		},
		FolderErrors: map[string]error{"c": errors.New("quota exceeded")},
	}
}

func TestRows(t *testing.T) {
	rows := Rows(sampleResult())
	if len(rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(rows))
	}
	if rows[0].Folder != "a" || rows[1].Folder != "b" {
		t.Errorf("Expected rows ordered by folder, got %s, %s", rows[0].Folder, rows[1].Folder)
	}
	if rows[0].DurationMS != 1500 {
		t.Errorf("Expected 1500ms, got %d", rows[0].DurationMS)
	}
	if rows[1].Error != "connection reset" {
		t.Errorf("Expected error text, got %q", rows[1].Error)
	}
}

func TestWriteYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "run.yaml")
	if err := Write(path, Meta{Account: "field@example.com", Backend: "local"}, sampleResult()); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}
	if doc.Uploaded != 1 || doc.Failed != 1 {
		t.Errorf("Expected 1 uploaded and 1 failed, got %d/%d", doc.Uploaded, doc.Failed)
	}
	if doc.Config.Account != "field@example.com" || doc.Config.Timestamp == "" {
		t.Errorf("Unexpected config: %+v", doc.Config)
	}
	if doc.FolderErrors["c"] != "quota exceeded" {
		t.Errorf("Expected folder error for c, got %v", doc.FolderErrors)
	}
}

func TestWriteParquet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.parquet")
	if err := Write(path, Meta{}, sampleResult()); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	rows, err := parquet.ReadFile[Row](path)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(rows))
	}
	if rows[0].Key != "1.jpg" || !rows[0].Uploaded || rows[0].Bytes != 100 {
		t.Errorf("Unexpected first row: %+v", rows[0])
	}
}

func TestWriteUnsupported(t *testing.T) {
	if err := Write(filepath.Join(t.TempDir(), "run.csv"), Meta{}, sampleResult()); err == nil {
		t.Error("Expected an error for an unsupported extension")
	}
}

func TestRowsMarkRemovedImages(t *testing.T) {
	result := upload.Result{Outcomes: []upload.Outcome{
		{Folder: "a", Key: "1.jpg", Uploaded: true, Progress: 1},
		{Folder: "a", Key: "2.jpg", Uploaded: true, Removed: true, Progress: 1},
	}}
	rows := Rows(result)
	if rows[0].Removed || !rows[1].Removed {
		t.Errorf("Expected only 2.jpg marked removed, got %+v", rows)
	}

	path := filepath.Join(t.TempDir(), "run.yaml")
	if err := Write(path, Meta{}, result); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}
	if len(doc.Results) != 2 || !doc.Results[1].Removed {
		t.Errorf("Expected the removed flag in the YAML report, got %+v", doc.Results)
	}
}
