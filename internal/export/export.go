package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
	"gopkg.in/yaml.v3"

	"github.com/lehigh-university-libraries/coverlens/internal/models"
)

type Format string

const (
	FormatJSON    Format = "json"
	FormatYAML    Format = "yaml"
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

// ParseFormat accepts a format name or a file extension
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "csv":
		return FormatCSV, nil
	case "parquet":
		return FormatParquet, nil
	default:
		return "", fmt.Errorf("unsupported export format %q (json, yaml, csv, parquet)", s)
	}
}

// ContentType is the MIME type served for the format
func (f Format) ContentType() string {
	switch f {
	case FormatYAML:
		return "application/yaml"
	case FormatCSV:
		return "text/csv"
	case FormatParquet:
		return "application/vnd.apache.parquet"
	default:
		return "application/json"
	}
}

// Meta describes the view a set of rows was taken from
type Meta struct {
	Mode             string    `json:"mode" yaml:"mode"`
	ThresholdPercent int       `json:"threshold" yaml:"threshold"`
	Category         string    `json:"category,omitempty" yaml:"category,omitempty"`
	TotalCount       int       `json:"total_count,omitempty" yaml:"total_count,omitempty"`
	ExportedAt       time.Time `json:"exported_at" yaml:"exported_at"`
}

// Row is one visible book in display order
type Row struct {
	Rank              int      `json:"rank" yaml:"rank" parquet:"rank"`
	ID                string   `json:"id" yaml:"id" parquet:"id"`
	Title             string   `json:"title" yaml:"title" parquet:"title"`
	Author            string   `json:"author,omitempty" yaml:"author,omitempty" parquet:"author"`
	Category          string   `json:"category,omitempty" yaml:"category,omitempty" parquet:"category"`
	CoverImageURL     string   `json:"cover_image_url,omitempty" yaml:"cover_image_url,omitempty" parquet:"cover_image_url"`
	SimilarityPercent *float64 `json:"similarity_percent,omitempty" yaml:"similarity_percent,omitempty" parquet:"similarity_percent,optional"`
}

// Report is the document written for json and yaml
type Report struct {
	Meta    Meta  `json:"meta" yaml:"meta"`
	Results []Row `json:"results" yaml:"results"`
}

// Rows converts books into ranked rows, keeping their order
func Rows(books []models.Book) []Row {
	rows := make([]Row, 0, len(books))
	for i, b := range books {
		row := Row{
			Rank:          i + 1,
			ID:            b.ID,
			Title:         b.Title,
			Author:        b.Author,
			Category:      b.Category,
			CoverImageURL: b.CoverImageURL,
		}
		if b.Similarity != nil {
			pct := b.SimilarityPercent()
			row.SimilarityPercent = &pct
		}
		rows = append(rows, row)
	}
	return rows
}

// Write encodes books to w in the requested format
func Write(w io.Writer, format Format, meta Meta, books []models.Book) error {
	rows := Rows(books)

	switch format {
	case FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(Report{Meta: meta, Results: rows}); err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
	case FormatYAML:
		data, err := yaml.Marshal(&Report{Meta: meta, Results: rows})
		if err != nil {
			return fmt.Errorf("failed to marshal YAML: %w", err)
		}
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("failed to write YAML: %w", err)
		}
	case FormatCSV:
		return writeCSV(w, rows)
	case FormatParquet:
		return writeParquet(w, rows)
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
	return nil
}

func writeCSV(w io.Writer, rows []Row) error {
	writer := csv.NewWriter(w)

	header := []string{"Rank", "ID", "Title", "Author", "Category", "Similarity", "Cover"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, r := range rows {
		similarity := ""
		if r.SimilarityPercent != nil {
			similarity = strconv.FormatFloat(*r.SimilarityPercent, 'f', 2, 64)
		}
		record := []string{
			strconv.Itoa(r.Rank),
			r.ID,
			r.Title,
			r.Author,
			r.Category,
			similarity,
			r.CoverImageURL,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func writeParquet(w io.Writer, rows []Row) error {
	writer := parquet.NewGenericWriter[Row](w)
	if _, err := writer.Write(rows); err != nil {
		return fmt.Errorf("failed to write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return nil
}

// SaveToFile writes books to path. An empty format is taken from the extension.
func SaveToFile(path string, format Format, meta Meta, books []models.Book) error {
	if format == "" {
		var err error
		if format, err = ParseFormat(filepath.Ext(path)); err != nil {
			return err
		}
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create export directory: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := Write(&buf, format, meta, books); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write export file: %w", err)
	}

	slog.Info("Exported results", "path", path, "format", string(format), "rows", len(books))
	return nil
}
