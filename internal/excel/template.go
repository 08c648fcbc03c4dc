package excel

import (
	"github.com/xuri/excelize/v2"

	"github.com/nurpe/koshtorys/internal/model"
)

var (
	goodsHeaders    = []string{"№", "Найменування", "Код", "Од. вим.", "К-сть", "Ціна", "Сума"}
	servicesHeaders = []string{"№", "Найменування", "Код", "Од. вим.", "К-сть", "Ціна", "К-сть обсл.", "Сума за обсл.", "Сума"}
	columnWidths    = []float64{5, 40, 15, 10, 10, 12, 12, 15, 15}
)

type TemplateGenerator struct{}

func NewTemplateGenerator() *TemplateGenerator {
	return &TemplateGenerator{}
}

// Generate builds the blank specification workbook for a KEKV code, with
// example rows showing the expected layout.
func (g *TemplateGenerator) Generate(kekvCode string) ([]byte, error) {
	file := excelize.NewFile()
	defer file.Close()

	sheet := SpecificationSheet
	if err := file.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	headerStyle, err := file.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 10},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"E0E0E0"}},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
	})
	if err != nil {
		return nil, err
	}
	sectionStyle, err := file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	moneyFmt := "#,##0.00"
	moneyStyle, err := file.NewStyle(&excelize.Style{CustomNumFmt: &moneyFmt})
	if err != nil {
		return nil, err
	}

	headers := goodsHeaders
	if model.TracksSections(kekvCode) {
		headers = servicesHeaders
	}
	if err := file.SetSheetRow(sheet, "A1", &headers); err != nil {
		return nil, err
	}
	last, _ := excelize.ColumnNumberToName(len(headers))
	if err := file.SetCellStyle(sheet, "A1", last+"1", headerStyle); err != nil {
		return nil, err
	}
	for i, width := range columnWidths[:len(headers)] {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := file.SetColWidth(sheet, col, col, width); err != nil {
			return nil, err
		}
	}

	if model.TracksSections(kekvCode) {
		rows := [][]interface{}{
			{model.SectionService.Title()},
			{"1", "Приклад послуги", "", "норм/год", 1, 100.00, 1, 100.00, 100.00},
			{model.SectionPart.Title()},
			{"1", "Приклад запчастини", "ABC123", "шт", 1, 100.00, nil, nil, 100.00},
		}
		for i, row := range rows {
			cellName, _ := excelize.CoordinatesToCellName(1, i+2)
			if err := file.SetSheetRow(sheet, cellName, &row); err != nil {
				return nil, err
			}
		}
		_ = file.SetCellStyle(sheet, "A2", "A2", sectionStyle)
		_ = file.SetCellStyle(sheet, "A4", "A4", sectionStyle)
		_ = file.SetColStyle(sheet, "F", moneyStyle)
		_ = file.SetColStyle(sheet, "H:I", moneyStyle)
	} else {
		row := []interface{}{"1", "Приклад товару", "ABC123", "шт", 1, 100.00, 100.00}
		if err := file.SetSheetRow(sheet, "A2", &row); err != nil {
			return nil, err
		}
		_ = file.SetColStyle(sheet, "F:G", moneyStyle)
	}
	_ = file.SetCellStyle(sheet, "A1", last+"1", headerStyle)

	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
