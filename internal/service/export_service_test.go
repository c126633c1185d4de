package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-venue-api/internal/models"
	appErrors "github.com/noah-isme/exam-venue-api/pkg/errors"
	"github.com/noah-isme/exam-venue-api/pkg/export"
)

type rosterStub struct {
	entries []models.SeatRosterEntry
	err     error
}

func (s rosterStub) ListRoster(ctx context.Context, examinationID string) ([]models.SeatRosterEntry, error) {
	return s.entries, s.err
}

type failingRenderer struct{}

func (failingRenderer) Render(export.Dataset) ([]byte, error) {
	return nil, errors.New("font missing")
}

func rosterEntry(seat int, student string) models.SeatRosterEntry {
	return models.SeatRosterEntry{
		SeatAssignment: models.SeatAssignment{ExaminationID: "exam-1", BookingID: "bk-1", StudentID: student, SeatNumber: seat},
		VenueCode:      "LT-A",
		VenueName:      "Lecture Theatre A",
		ExamDate:       day("2025-02-10"),
		StartTime:      clock("09:00"),
		EndTime:        clock("11:00"),
	}
}

func TestExportSeatRosterCSV(t *testing.T) {
	svc := NewExportService(singleExam(), rosterStub{entries: []models.SeatRosterEntry{rosterEntry(1, "stu-001"), rosterEntry(2, "stu-002")}}, nil, nil, nil)

	file, err := svc.ExportSeatRoster(context.Background(), "exam-1", ExportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "seat-roster-csc201.csv", file.Filename)
	assert.Equal(t, "text/csv", file.ContentType)
	assert.Equal(t,
		"Venue,Venue Name,Date,Start,End,Seat,Student ID\n"+
			"LT-A,Lecture Theatre A,2025-02-10,09:00,11:00,1,stu-001\n"+
			"LT-A,Lecture Theatre A,2025-02-10,09:00,11:00,2,stu-002\n",
		string(file.Payload))
}

func TestExportSeatRosterPDF(t *testing.T) {
	svc := NewExportService(singleExam(), rosterStub{entries: []models.SeatRosterEntry{rosterEntry(1, "stu-001")}}, nil, nil, nil)

	file, err := svc.ExportSeatRoster(context.Background(), "exam-1", "PDF")
	require.NoError(t, err)
	assert.Equal(t, "seat-roster-csc201.pdf", file.Filename)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.Equal(t, "%PDF", string(file.Payload[:4]))
}

func TestExportSeatRosterErrors(t *testing.T) {
	svc := NewExportService(singleExam(), rosterStub{}, nil, failingRenderer{}, nil)

	_, err := svc.ExportSeatRoster(context.Background(), "exam-1", "xlsx")
	assert.True(t, appErrors.IsCode(err, appErrors.ErrValidation.Code))

	_, err = svc.ExportSeatRoster(context.Background(), "exam-404", ExportFormatCSV)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrNotFound.Code))

	_, err = svc.ExportSeatRoster(context.Background(), "exam-1", ExportFormatPDF)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrInternal.Code))
}
