package export

import (
	"fmt"
	"io"
	"time"

	"slotbook/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	SheetName   = "Записи"
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	headerRow = 2
)

var columns = []struct {
	title string
	width float64
}{
	{"ID", 38},
	{"Дата", 12},
	{"Начало", 9},
	{"Конец", 9},
	{"Услуга", 25},
	{"Длительность, мин", 18},
	{"Клиент", 25},
	{"Email", 30},
	{"Статус", 12},
	{"Комментарий", 40},
}

// FileName returns the attachment name for a period export.
func FileName(from, to time.Time) string {
	return fmt.Sprintf("bookings_%s_to_%s.xlsx", from.Format(models.DateLayout), to.Format(models.DateLayout))
}

// WriteBookings renders bookings as a single-sheet workbook, one row per booking in the given order.
// Cancelled rows are greyed out.
func WriteBookings(w io.Writer, bookings []*models.Booking, from, to time.Time) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(SheetName)
	if err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	// Заголовок периода
	_ = f.SetCellValue(SheetName, "A1", fmt.Sprintf("Период: %s - %s", from.Format("02.01.2006"), to.Format("02.01.2006")))
	lastCol, _ := excelize.ColumnNumberToName(len(columns))
	_ = f.MergeCell(SheetName, "A1", lastCol+"1")
	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(SheetName, "A1", "A1", titleStyle)

	if err := writeHeaders(f); err != nil {
		return err
	}

	cancelledStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Color: "#808080", Strike: true},
	})

	for i, b := range bookings {
		row := headerRow + 1 + i
		cell, _ := excelize.CoordinatesToCellName(1, row)
		values := []interface{}{
			b.ID,
			b.StartTime.Format("02.01.2006"),
			b.StartTime.Format(models.ClockLayout),
			b.EndTime.Format(models.ClockLayout),
			b.ServiceName,
			b.DurationMinutes,
			b.CustomerName,
			b.CustomerEmail,
			b.Status,
			b.Notes,
		}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("error writing row %d: %w", row, err)
		}
		if !b.IsActive() {
			end, _ := excelize.CoordinatesToCellName(len(columns), row)
			_ = f.SetCellStyle(SheetName, cell, end, cancelledStyle)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("error writing workbook: %w", err)
	}
	return nil
}

func writeHeaders(f *excelize.File) error {
	style, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})

	for i, c := range columns {
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		cell := fmt.Sprintf("%s%d", name, headerRow)
		_ = f.SetCellValue(SheetName, cell, c.title)
		_ = f.SetCellStyle(SheetName, cell, cell, style)
		_ = f.SetColWidth(SheetName, name, name, c.width)
	}
	return nil
}
