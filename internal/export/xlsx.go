package export

import (
	"fmt"

	"github.com/adityar2309/Vehicle-Parking-App/internal/models"

	"github.com/xuri/excelize/v2"
)

type XLSXWriter struct{}

func NewXLSXWriter() *XLSXWriter {
	return &XLSXWriter{}
}

func (w *XLSXWriter) Extension() string {
	return models.FormatXLSX
}

func (w *XLSXWriter) Write(path string, reservations []*models.Reservation) error {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Reservations"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("error creating sheet: %v", err)
	}
	f.SetActiveSheet(index)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})

	for i, header := range artifactHeader {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheetName, cell, header)
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for i, res := range reservations {
		for j, value := range artifactRow(res) {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
			_ = f.SetCellValue(sheetName, cell, value)
		}
	}

	_ = f.SetColWidth(sheetName, "A", "A", 15)
	_ = f.SetColWidth(sheetName, "B", "B", 25)
	_ = f.SetColWidth(sheetName, "C", "D", 18)
	_ = f.SetColWidth(sheetName, "E", "F", 20)
	_ = f.SetColWidth(sheetName, "G", "H", 12)

	_ = f.DeleteSheet("Sheet1")

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("error saving file: %v", err)
	}
	return nil
}

