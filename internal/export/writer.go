package export

import (
	"fmt"

	"github.com/adityar2309/Vehicle-Parking-App/internal/domain"
	"github.com/adityar2309/Vehicle-Parking-App/internal/models"
)

// WriterFor returns the artifact writer for a configured format.
func WriterFor(format string) (domain.ArtifactWriter, error) {
	switch format {
	case models.FormatCSV:
		return NewCSVWriter(), nil
	case models.FormatXLSX:
		return NewXLSXWriter(), nil
	default:
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}
}
