package google

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/adityar2309/Vehicle-Parking-App/internal/models"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetsService pushes the daily revenue report into a shared
// spreadsheet for the operations team.
type SheetsService struct {
	service       *sheets.Service
	spreadsheetID string
}

func NewSheetsService(credentialsFile, spreadsheetID string) (*SheetsService, error) {
	ctx := context.Background()

	// Читаем файл учетных данных сервисного аккаунта
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %v", err)
	}

	// Создаем JWT конфигурацию
	config, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %v", err)
	}

	client := config.Client(ctx)

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %v", err)
	}

	return &SheetsService{
		service:       srv,
		spreadsheetID: spreadsheetID,
	}, nil
}

// TestConnection проверяет подключение к таблице
func (s *SheetsService) TestConnection(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, "Report!A1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %v", err)
	}
	return nil
}

// GetServiceAccountEmail возвращает email сервисного аккаунта
func (s *SheetsService) GetServiceAccountEmail(credentialsFile string) (string, error) {
	file, err := os.ReadFile(credentialsFile)
	if err != nil {
		return "", err
	}

	var creds struct {
		ClientEmail string `json:"client_email"`
	}

	if err := json.Unmarshal(file, &creds); err != nil {
		return "", err
	}

	return creds.ClientEmail, nil
}

// AppendDailyReport appends one summary row per day to the Report
// sheet: closed reservations, revenue and the busiest lot.
func (s *SheetsService) AppendDailyReport(ctx context.Context, day time.Time, reservations []*models.Reservation) error {
	var revenue float64
	lotCounts := make(map[string]int)
	for _, res := range reservations {
		if res.Cost != nil {
			revenue += *res.Cost
		}
		lotCounts[res.LotName]++
	}

	busiestLot := ""
	busiestCount := 0
	for lot, count := range lotCounts {
		if count > busiestCount {
			busiestLot = lot
			busiestCount = count
		}
	}

	row := []interface{}{
		day.Format("2006-01-02"),
		len(reservations),
		fmt.Sprintf("%.2f", revenue),
		busiestLot,
	}

	valueRange := &sheets.ValueRange{
		Values: [][]interface{}{row},
	}

	_, err := s.service.Spreadsheets.Values.Append(s.spreadsheetID, "Report!A:A", valueRange).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("unable to append daily report: %v", err)
	}
	return nil
}

// ReplaceDetailSheet полностью перезаписывает лист с закрытыми
// бронированиями за день
func (s *SheetsService) ReplaceDetailSheet(ctx context.Context, reservations []*models.Reservation) error {
	clearRange := "Detail!A2:Z"
	_, err := s.service.Spreadsheets.Values.Clear(s.spreadsheetID, clearRange, &sheets.ClearValuesRequest{}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to clear detail sheet: %v", err)
	}

	var values [][]interface{}
	for _, res := range reservations {
		cost := 0.0
		if res.Cost != nil {
			cost = *res.Cost
		}
		endedAt := ""
		if res.EndedAt != nil {
			endedAt = res.EndedAt.Format("2006-01-02 15:04:05")
		}
		row := []interface{}{
			res.ID,
			res.UserID,
			res.LotName,
			res.SpotNumber,
			res.VehicleNumber,
			res.StartedAt.Format("2006-01-02 15:04:05"),
			endedAt,
			fmt.Sprintf("%.2f", cost),
		}
		values = append(values, row)
	}

	if len(values) == 0 {
		return nil
	}

	valueRange := &sheets.ValueRange{
		Values: values,
	}

	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, "Detail!A2", valueRange).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to update detail sheet: %v", err)
	}
	return nil
}
