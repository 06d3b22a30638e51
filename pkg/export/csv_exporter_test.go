package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCSVExporterRender(t *testing.T) {
	exporter := NewCSVExporter()
	data := Dataset{
		Headers: []string{"Name", "Amount"},
		Rows: []map[string]string{
			{"Name": "Rural Health Grant", "Amount": "125000.00"},
		},
	}
	out, err := exporter.Render(data)
	require.NoError(t, err)
	require.Contains(t, string(out), "Name,Amount")
	require.Contains(t, string(out), "Rural Health Grant,125000.00")
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	require.Error(t, err)
}

func TestQuotedCSVExporterQuotesEveryField(t *testing.T) {
	exporter := NewQuotedCSVExporter()
	data := Dataset{
		Headers: []string{"Name", "Notes"},
		Rows: []map[string]string{
			{"Name": "Grant A", "Notes": `has "quotes" inside`},
			{"Name": "Grant B", "Notes": ""},
		},
	}
	out, err := exporter.Render(data)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(out), "\r\n"), "\r\n")
	require.Len(t, lines, 3)
	require.Equal(t, `"Name","Notes"`, lines[0])
	require.Equal(t, `"Grant A","has ""quotes"" inside"`, lines[1])
	require.Equal(t, `"Grant B",""`, lines[2])
}
