package excel

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/nurpe/koshtorys/internal/model"
)

const (
	headerModel          = "Модель"
	headerMilitaryNumber = "Військовий номер"
	headerBodyNumber     = "Номер кузова"
	headerVIN            = "VIN"
	headerLocation       = "Місцезнаходження"
	headerManufactured   = "Дата виготовлення"
	headerEngineNumber   = "Номер двигуна"
	headerChassisNumber  = "Номер шасі"

	defaultVehicleYear = 2000
	notAvailable       = "Н/Д"
)

type VehicleImporter struct{}

func NewVehicleImporter() *VehicleImporter {
	return &VehicleImporter{}
}

// Parse reads vehicles from the first worksheet, matching columns by their
// header titles.
func (i *VehicleImporter) Parse(r io.Reader) ([]model.Vehicle, error) {
	file, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("read workbook: %w", err)
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrSheetMissing
	}
	rows, err := file.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, ErrEmptyFile
	}

	columns := map[string]int{}
	for idx, title := range rows[0] {
		columns[strings.TrimSpace(title)] = idx
	}
	value := func(row []string, header string) string {
		idx, ok := columns[header]
		if !ok {
			return ""
		}
		return cell(row, idx)
	}

	var vehicles []model.Vehicle
	for _, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		vin := value(row, headerBodyNumber)
		if vin == "" {
			vin = value(row, headerVIN)
		}
		if vin == "" {
			vin = "generated-" + uuid.NewString()
		}

		vehicles = append(vehicles, model.Vehicle{
			Model:          value(row, headerModel),
			MilitaryNumber: value(row, headerMilitaryNumber),
			VIN:            vin,
			Location:       value(row, headerLocation),
			Year:           parseYear(value(row, headerManufactured)),
			Status:         model.VehicleStatusInService,
			Notes: fmt.Sprintf("Номер двигуна: %s, Номер шасі: %s",
				orNotAvailable(value(row, headerEngineNumber)),
				orNotAvailable(value(row, headerChassisNumber))),
		})
	}
	if len(vehicles) == 0 {
		return nil, ErrEmptyFile
	}
	return vehicles, nil
}

// parseYear accepts a plain year, a date starting with the year, or an
// Excel date serial.
func parseYear(raw string) int {
	digits := strings.TrimSpace(raw)
	end := strings.IndexFunc(digits, func(r rune) bool { return !unicode.IsDigit(r) })
	if end >= 0 {
		digits = digits[:end]
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return defaultVehicleYear
	}
	if n >= 1900 && n <= 2100 {
		return n
	}
	if n > 2100 {
		if t, err := excelize.ExcelDateToTime(float64(n), false); err == nil {
			return t.Year()
		}
	}
	return defaultVehicleYear
}

func orNotAvailable(value string) string {
	if value == "" {
		return notAvailable
	}
	return value
}

func isBlank(row []string) bool {
	for _, value := range row {
		if strings.TrimSpace(value) != "" {
			return false
		}
	}
	return true
}
