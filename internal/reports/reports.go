// Package reports converts ledger data to and from XLSX workbooks.
package reports

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/Spok95/e-weave/internal/domain/materials"
)

var recountHeader = []interface{}{
	"material_id",
	"material_name",
	"fiber",
	"current_quantity",
	"counted_quantity", // filled in by whoever counts the stock
}

// WriteHistory writes one row per history entry, oldest first.
func WriteHistory(w io.Writer, m materials.Material, entries []materials.History) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	title := []interface{}{"material", m.Name, "id", m.ID.String()}
	if err := f.SetSheetRow(sheet, "A1", &title); err != nil {
		return err
	}
	header := []interface{}{"changed_at", "previous_length", "new_length", "delta", "team_member_id", "task_id"}
	if err := f.SetSheetRow(sheet, "A2", &header); err != nil {
		return err
	}

	row := 3
	for _, h := range entries {
		task := ""
		if h.TaskID != nil {
			task = h.TaskID.String()
		}
		excelRow := []interface{}{
			h.ChangedAt.UTC().Format(time.RFC3339),
			h.PreviousQuantity,
			h.NewQuantity,
			h.Delta(),
			h.TeamMemberID.String(),
			task,
		}
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &excelRow); err != nil {
			return err
		}
		row++
	}
	return f.Write(w)
}

// WriteRecountSheet writes the stock count template with an empty
// counted_quantity column.
func WriteRecountSheet(w io.Writer, mats []materials.Material) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if err := f.SetSheetRow(sheet, "A1", &recountHeader); err != nil {
		return err
	}
	row := 2
	for _, m := range mats {
		excelRow := []interface{}{m.ID.String(), m.Name, m.Fiber, m.Quantity, ""}
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &excelRow); err != nil {
			return err
		}
		row++
	}
	return f.Write(w)
}

// RecountRow is one counted line. Err is set when the line could not be
// parsed; such rows are reported back instead of failing the whole file.
type RecountRow struct {
	Line       int
	MaterialID uuid.UUID
	Quantity   float64
	Err        error
}

var ErrBadRecountFile = errors.New("reports: not a recount workbook")

// ParseRecount reads a workbook produced by WriteRecountSheet. Rows with an
// empty counted_quantity are skipped.
func ParseRecount(r io.Reader) ([]RecountRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRecountFile, err)
	}
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(f.GetSheetName(f.GetActiveSheetIndex()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRecountFile, err)
	}
	if len(rows) == 0 || len(rows[0]) < len(recountHeader) {
		return nil, fmt.Errorf("%w: expected %d columns", ErrBadRecountFile, len(recountHeader))
	}

	var out []RecountRow
	for i, cols := range rows[1:] {
		line := i + 2
		if len(cols) < len(recountHeader) || strings.TrimSpace(cols[4]) == "" {
			continue
		}
		rr := RecountRow{Line: line}
		id, err := uuid.Parse(strings.TrimSpace(cols[0]))
		if err != nil {
			rr.Err = fmt.Errorf("line %d: bad material_id", line)
			out = append(out, rr)
			continue
		}
		rr.MaterialID = id

		qty, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(cols[4]), ",", "."), 64)
		if err != nil {
			rr.Err = fmt.Errorf("line %d: bad counted_quantity", line)
		}
		rr.Quantity = qty
		out = append(out, rr)
	}
	return out, nil
}
