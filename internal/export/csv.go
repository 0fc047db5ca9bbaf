package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/adityar2309/Vehicle-Parking-App/internal/models"
)

// artifactHeader is shared by both writers so a CSV and an XLSX of the
// same history carry identical columns.
var artifactHeader = []string{
	"Reservation ID", "Lot", "Spot Number", "Vehicle Number",
	"Started At", "Ended At", "Cost", "Status",
}

const artifactTimeLayout = "2006-01-02 15:04:05"

type CSVWriter struct{}

func NewCSVWriter() *CSVWriter {
	return &CSVWriter{}
}

func (w *CSVWriter) Extension() string {
	return models.FormatCSV
}

func (w *CSVWriter) Write(path string, reservations []*models.Reservation) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating csv file: %v", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(artifactHeader); err != nil {
		return fmt.Errorf("error writing csv header: %v", err)
	}

	for _, res := range reservations {
		if err := cw.Write(artifactRow(res)); err != nil {
			return fmt.Errorf("error writing csv row: %v", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("error flushing csv file: %v", err)
	}
	return nil
}

func artifactRow(res *models.Reservation) []string {
	endedAt := ""
	if res.EndedAt != nil {
		endedAt = res.EndedAt.Format(artifactTimeLayout)
	}
	cost := ""
	if res.Cost != nil {
		cost = strconv.FormatFloat(*res.Cost, 'f', 2, 64)
	}
	return []string{
		strconv.FormatInt(res.ID, 10),
		res.LotName,
		strconv.FormatInt(res.SpotNumber, 10),
		res.VehicleNumber,
		res.StartedAt.Format(artifactTimeLayout),
		endedAt,
		cost,
		res.Status,
	}
}
