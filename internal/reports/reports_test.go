package reports

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/Spok95/e-weave/internal/domain/materials"
)

func TestWriteHistory(t *testing.T) {
	m := materials.Material{ID: uuid.New(), Name: "Linen"}
	task := uuid.New()
	entries := []materials.History{
		{ID: uuid.New(), MaterialID: m.ID, TeamMemberID: uuid.New(), PreviousQuantity: 100, NewQuantity: 70, ChangedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), TaskID: &task},
		{ID: uuid.New(), MaterialID: m.ID, TeamMemberID: uuid.New(), PreviousQuantity: 70, NewQuantity: 90, ChangedAt: time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC)},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteHistory(&buf, m, entries))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(f.GetSheetName(f.GetActiveSheetIndex()))
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "Linen", rows[0][1])
	assert.Equal(t, "2026-01-02T03:04:05Z", rows[2][0])
	assert.Equal(t, "-30", rows[2][3])
	assert.Equal(t, task.String(), rows[2][5])
	assert.Equal(t, "20", rows[3][3])
}

func TestRecountRoundTrip(t *testing.T) {
	a := materials.Material{ID: uuid.New(), Name: "Cotton", Quantity: 12}
	b := materials.Material{ID: uuid.New(), Name: "Wool", Quantity: 4}

	var buf bytes.Buffer
	require.NoError(t, WriteRecountSheet(&buf, []materials.Material{a, b}))

	// fill in the counted column the way a user would
	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	require.NoError(t, f.SetCellValue(sheet, "E2", "10,5"))
	var filled bytes.Buffer
	require.NoError(t, f.Write(&filled))
	require.NoError(t, f.Close())

	rows, err := ParseRecount(&filled)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 2, rows[0].Line)
	assert.Equal(t, a.ID, rows[0].MaterialID)
	assert.Equal(t, 10.5, rows[0].Quantity)
	assert.NoError(t, rows[0].Err)
}

func TestParseRecountBadRows(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	require.NoError(t, f.SetSheetRow(sheet, "A1", &recountHeader))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{"nope", "x", "", 1, "3"}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]interface{}{uuid.NewString(), "y", "", 1, "many"}))
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	require.NoError(t, f.Close())

	rows, err := ParseRecount(&buf)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.ErrorContains(t, rows[0].Err, "line 2: bad material_id")
	assert.ErrorContains(t, rows[1].Err, "line 3: bad counted_quantity")
}

func TestParseRecountNotAWorkbook(t *testing.T) {
	_, err := ParseRecount(bytes.NewReader([]byte("plain text")))
	assert.ErrorIs(t, err, ErrBadRecountFile)
}
