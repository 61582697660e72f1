package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	data := Dataset{Title: "Tutor roster", Headers: []string{"Name", "Load"}}
	data.Append("Ada", "2")
	data.Append("Grace, Hopper", "0")
	return data
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Name,Load", lines[0])
	assert.Equal(t, `"Grace, Hopper",0`, lines[2])
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	exporter := NewPDFExporter()
	exporter.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	data := sampleDataset()
	data.Append(strings.Repeat("very long tutor name ", 20), "1")

	out, err := exporter.Render(data)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
	assert.Equal(t, "application/pdf", exporter.ContentType())
}

func TestDatasetAppendIgnoresExtraValues(t *testing.T) {
	data := Dataset{Headers: []string{"A"}}
	data.Append("1", "2")
	require.Len(t, data.Rows, 1)
	assert.Equal(t, map[string]string{"A": "1"}, data.Rows[0])
}
