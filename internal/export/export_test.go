package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/lehigh-university-libraries/coverlens/internal/models"
)

func sim(v float64) *float64 { return &v }

func sampleBooks() []models.Book {
	return []models.Book{
		{ID: "OL1W", Title: "Dune", Author: "Frank Herbert", Category: "Fiction", Similarity: sim(0.92)},
		{ID: "OL2W", Title: "Leaves of Grass, Deathbed Edition", Author: "Walt Whitman", Similarity: sim(0.415)},
		{ID: "OL3W", Title: "Query Book"},
	}
}

var meta = Meta{Mode: "search", ThresholdPercent: 40, Category: "All", ExportedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{in: "", want: FormatJSON},
		{in: "JSON", want: FormatJSON},
		{in: ".yml", want: FormatYAML},
		{in: "csv", want: FormatCSV},
		{in: ".parquet", want: FormatParquet},
		{in: "xlsx", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRowsKeepOrderAndRank(t *testing.T) {
	rows := Rows(sampleBooks())
	require.Len(t, rows, 3)
	assert.Equal(t, 1, rows[0].Rank)
	assert.Equal(t, "OL3W", rows[2].ID)
	assert.InDelta(t, 92.0, *rows[0].SimilarityPercent, 1e-9)
	assert.Nil(t, rows[2].SimilarityPercent)
	assert.NotNil(t, Rows(nil))
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatJSON, meta, sampleBooks()))

	var report Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &report))
	assert.Equal(t, "search", report.Meta.Mode)
	assert.Len(t, report.Results, 3)
	assert.NotContains(t, buf.String(), `"similarity_percent": null`)
}

func TestWriteYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatYAML, meta, sampleBooks()))

	var report Report
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &report))
	assert.Equal(t, 40, report.Meta.ThresholdPercent)
	assert.Equal(t, "Frank Herbert", report.Results[0].Author)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatCSV, meta, sampleBooks()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, "Rank", records[0][0])
	assert.Equal(t, "Leaves of Grass, Deathbed Edition", records[2][2])
	assert.Equal(t, "41.50", records[2][5])
	assert.Equal(t, "", records[3][5])
}

func TestWriteParquetReadsBack(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatParquet, meta, sampleBooks()))

	rows, err := parquet.Read[Row](bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Dune", rows[0].Title)
	require.NotNil(t, rows[1].SimilarityPercent)
	assert.InDelta(t, 41.5, *rows[1].SimilarityPercent, 1e-9)
	assert.Nil(t, rows[2].SimilarityPercent)
}

func TestSaveToFileInfersFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "results.csv")
	require.NoError(t, SaveToFile(path, "", meta, sampleBooks()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Rank,ID,Title")

	assert.Error(t, SaveToFile(filepath.Join(t.TempDir(), "results.txt"), "", meta, nil))
}
