package excel

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/nurpe/koshtorys/internal/model"
	"github.com/nurpe/koshtorys/internal/money"
)

// SpecificationSheet is the worksheet the importer reads and the template
// writes.
const SpecificationSheet = "Специфікація"

const (
	colNumber = iota
	colName
	colCode
	colUnit
	colQuantity
	colPrice
	colServiceCount
)

var sectionHeaders = map[string]model.Section{
	model.SectionService.Title(): model.SectionService,
	model.SectionPart.Title():    model.SectionPart,
}

// specificationRecord mirrors the template header for CSV uploads.
type specificationRecord struct {
	Number       string `csv:"№"`
	Name         string `csv:"Найменування"`
	Code         string `csv:"Код"`
	Unit         string `csv:"Од. вим."`
	Quantity     string `csv:"К-сть"`
	Price        string `csv:"Ціна"`
	ServiceCount string `csv:"К-сть обсл."`
}

type SpecificationImporter struct{}

func NewSpecificationImporter() *SpecificationImporter {
	return &SpecificationImporter{}
}

// ParseXLSX reads line items from the specification worksheet. The first
// row is the header.
func (i *SpecificationImporter) ParseXLSX(r io.Reader, kekvCode string) (*model.ImportResult, error) {
	file, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("read workbook: %w", err)
	}
	defer file.Close()

	if idx, err := file.GetSheetIndex(SpecificationSheet); err != nil || idx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrSheetMissing, SpecificationSheet)
	}
	rows, err := file.GetRows(SpecificationSheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 {
		rows = rows[1:]
	}
	return parseSpecificationRows(rows, 2, kekvCode)
}

// ParseCSV reads line items from a CSV export of the template. Comma and
// semicolon separated files are both accepted.
func (i *SpecificationImporter) ParseCSV(r io.Reader, kekvCode string) (*model.ImportResult, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))

	reader := csv.NewReader(bytes.NewReader(content))
	reader.Comma = detectDelimiter(content)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	var records []*specificationRecord
	if err := gocsv.UnmarshalCSV(reader, &records); err != nil {
		if errors.Is(err, gocsv.ErrEmptyCSVFile) {
			return nil, ErrEmptyFile
		}
		return nil, fmt.Errorf("read csv: %w", err)
	}

	rows := make([][]string, len(records))
	for idx, rec := range records {
		rows[idx] = []string{rec.Number, rec.Name, rec.Code, rec.Unit, rec.Quantity, rec.Price, rec.ServiceCount}
	}
	return parseSpecificationRows(rows, 2, kekvCode)
}

func detectDelimiter(content []byte) rune {
	line := content
	if idx := bytes.IndexByte(content, '\n'); idx >= 0 {
		line = content[:idx]
	}
	if bytes.Count(line, []byte(";")) > bytes.Count(line, []byte(",")) {
		return ';'
	}
	return ','
}

func parseSpecificationRows(rows [][]string, firstRow int, kekvCode string) (*model.ImportResult, error) {
	sectioned := model.TracksSections(kekvCode)
	section := model.SectionOther
	if sectioned {
		section = model.SectionNone
	}

	result := &model.ImportResult{KEKVCode: kekvCode, Total: decimal.Zero}
	for idx, row := range rows {
		rowNumber := firstRow + idx
		first := cell(row, colNumber)

		if sectioned {
			if next, ok := sectionHeaders[first]; ok {
				section = next
				continue
			}
		}
		if first == "" {
			continue
		}

		item, err := parseItem(row, rowNumber, section)
		if err != nil {
			return nil, err
		}
		result.Items = append(result.Items, item)
	}

	if len(result.Items) == 0 {
		return nil, ErrEmptyFile
	}
	result.Subtotals, result.Total = subtotals(result.Items)
	return result, nil
}

func parseItem(row []string, rowNumber int, section model.Section) (model.LineItem, error) {
	item := model.LineItem{
		Section: section,
		Number:  cell(row, colNumber),
		Name:    cell(row, colName),
		Code:    cell(row, colCode),
		Unit:    cell(row, colUnit),
	}
	if item.Name == "" || item.Unit == "" {
		return model.LineItem{}, rowError(rowNumber, "name and unit are required")
	}

	quantity, err := money.Parse(cell(row, colQuantity))
	if err != nil {
		return model.LineItem{}, rowError(rowNumber, "invalid quantity %q", cell(row, colQuantity))
	}
	price, err := money.Parse(cell(row, colPrice))
	if err != nil {
		return model.LineItem{}, rowError(rowNumber, "invalid price %q", cell(row, colPrice))
	}
	item.Quantity = quantity
	item.Price = price

	serviceCount := 0
	if section == model.SectionService {
		serviceCount = parseServiceCount(cell(row, colServiceCount))
		item.ServiceCount = &serviceCount
	}

	amount, err := money.LineAmount(quantity, price, serviceCount)
	if err != nil {
		return model.LineItem{}, rowError(rowNumber, "amount cannot be computed from quantity and price")
	}
	item.Amount = amount
	return item, nil
}

// parseServiceCount falls back to a single service for blank or
// non-numeric cells.
func parseServiceCount(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 1
	}
	if n, err := strconv.Atoi(raw); err == nil && n > 0 {
		return n
	}
	if d, err := money.Parse(raw); err == nil && d.IntPart() > 0 {
		return int(d.IntPart())
	}
	return 1
}

func subtotals(items []model.LineItem) ([]model.SectionSubtotal, decimal.Decimal) {
	total := decimal.Zero
	var result []model.SectionSubtotal
	index := map[model.Section]int{}
	for _, item := range items {
		total = total.Add(item.Amount)
		pos, ok := index[item.Section]
		if !ok {
			pos = len(result)
			index[item.Section] = pos
			result = append(result, model.SectionSubtotal{
				Section: item.Section,
				Title:   item.Section.Title(),
				Amount:  decimal.Zero,
			})
		}
		result[pos].Count++
		result[pos].Amount = result[pos].Amount.Add(item.Amount)
	}
	return result, total
}

func cell(row []string, col int) string {
	if col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}
