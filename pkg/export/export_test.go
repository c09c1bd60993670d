package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Headers: []string{"Section", "Course", "Status"},
		Rows: []map[string]string{
			{"Section": "26094", "Course": "BIO 1A", "Status": "Scheduled"},
			{"Section": "28602", "Course": "=HYPERLINK(\"x\")", "Status": "Invited"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)

	body := string(out)
	assert.Contains(t, body, "Section,Course,Status\n")
	assert.Contains(t, body, "26094,BIO 1A,Scheduled\n")
	assert.Contains(t, body, "'=HYPERLINK")
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(sampleDataset(), "Course Capture Report")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
