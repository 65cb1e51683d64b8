package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/scanfolders/internal/upload"
	"github.com/parquet-go/parquet-go"
	"gopkg.in/yaml.v3"
)

// Meta describes the run a report belongs to
type Meta struct {
	Account      string `yaml:"account"`
	Backend      string `yaml:"backend"`
	ParentFolder string `yaml:"parentfolder,omitempty"`
	Timestamp    string `yaml:"timestamp"`
}

// Row is one image outcome
type Row struct {
	Folder     string  `yaml:"folder" parquet:"folder"`
	FileName   string  `yaml:"filename" parquet:"file_name"`
	Key        string  `yaml:"key" parquet:"key"`
	Locator    string  `yaml:"locator" parquet:"locator"`
	Uploaded   bool    `yaml:"uploaded" parquet:"uploaded"`
	Removed    bool    `yaml:"removed,omitempty" parquet:"removed"`
	Progress   float64 `yaml:"progress" parquet:"progress"`
	Bytes      int64   `yaml:"bytes" parquet:"bytes"`
	DurationMS int64   `yaml:"durationms" parquet:"duration_ms"`
	Error      string  `yaml:"error,omitempty" parquet:"error"`
}

// Document is the YAML document layout
type Document struct {
	Config       Meta              `yaml:"config"`
	Uploaded     int               `yaml:"uploaded"`
	Failed       int               `yaml:"failed"`
	FolderErrors map[string]string `yaml:"foldererrors,omitempty"`
	Results      []Row             `yaml:"results"`
}

// Rows flattens a result, ordered by folder and file name
func Rows(result upload.Result) []Row {
	rows := make([]Row, 0, len(result.Outcomes))
	for _, o := range result.Outcomes {
		row := Row{
			Folder:     o.Folder,
			FileName:   o.FileName,
			Key:        o.Key,
			Locator:    o.Locator,
			Uploaded:   o.Uploaded,
			Removed:    o.Removed,
			Progress:   o.Progress,
			Bytes:      o.Bytes,
			DurationMS: o.Duration.Milliseconds(),
		}
		if o.Err != nil {
			row.Error = o.Err.Error()
		}
		rows = append(rows, row)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Folder != rows[j].Folder {
			return rows[i].Folder < rows[j].Folder
		}
		return rows[i].Key < rows[j].Key
	})
	return rows
}

// Write saves the report, choosing YAML or Parquet from the file extension
func Write(path string, meta Meta, result upload.Result) error {
	if meta.Timestamp == "" {
		meta.Timestamp = time.Now().Format("2006-01-02_15-04-05")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return SaveToYAML(path, meta, result)
	case ".parquet":
		return SaveToParquet(path, result)
	default:
		return fmt.Errorf("unsupported report format %q (use .yaml or .parquet)", ext)
	}
}

// SaveToYAML writes the run summary and every outcome as YAML
func SaveToYAML(path string, meta Meta, result upload.Result) error {
	doc := Document{
		Config:   meta,
		Uploaded: result.Uploaded(),
		Failed:   result.Failed(),
		Results:  Rows(result),
	}
	if len(result.FolderErrors) > 0 {
		doc.FolderErrors = make(map[string]string, len(result.FolderErrors))
		for name, err := range result.FolderErrors {
			doc.FolderErrors[name] = err.Error()
		}
	}

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write YAML file: %w", err)
	}
	return nil
}

// SaveToParquet writes one row per outcome
func SaveToParquet(path string, result upload.Result) error {
	if err := parquet.WriteFile(path, Rows(result)); err != nil {
		return fmt.Errorf("failed to write parquet file: %w", err)
	}
	return nil
}
