package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rosterDataset() Dataset {
	return Dataset{
		Title:   "CSC201 seat roster",
		Headers: []string{"Venue", "Seat", "Student"},
		Rows: [][]string{
			{"LT-A", "1", "stu-1"},
			{"LT-A", "2", "stu-2"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(rosterDataset())
	require.NoError(t, err)
	assert.Equal(t, "Venue,Seat,Student\nLT-A,1,stu-1\nLT-A,2,stu-2\n", string(out))
}

func TestCSVExporterRejectsRaggedRows(t *testing.T) {
	data := rosterDataset()
	data.Rows = append(data.Rows, []string{"LT-B"})
	_, err := NewCSVExporter().Render(data)
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	data := rosterDataset()
	for i := 0; i < 120; i++ {
		data.Rows = append(data.Rows, []string{"LT-B", "9", "stu-x"})
	}
	out, err := NewPDFExporter().Render(data)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestPDFExporterRequiresHeaders(t *testing.T) {
	_, err := NewPDFExporter().Render(Dataset{})
	assert.Error(t, err)
}
