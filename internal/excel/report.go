package excel

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/nurpe/koshtorys/internal/model"
	"github.com/nurpe/koshtorys/internal/money"
)

const maxSheetName = 31

type ReportGenerator struct{}

func NewReportGenerator() *ReportGenerator {
	return &ReportGenerator{}
}

// Generate renders a budget summary sheet followed by one sheet per KEKV
// listing its contracts and their specifications.
func (g *ReportGenerator) Generate(report model.BudgetReport) ([]byte, error) {
	file := excelize.NewFile()
	defer file.Close()

	summarySheet := "Кошторис"
	if err := file.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	g.writeSummary(file, summarySheet, report)

	byKEKV := map[string][]model.Contract{}
	for _, contract := range report.Contracts {
		byKEKV[contract.KEKVID.String()] = append(byKEKV[contract.KEKVID.String()], contract)
	}

	usedNames := map[string]struct{}{summarySheet: {}}
	kekvs := append([]model.KEKV(nil), report.Budget.KEKVs...)
	sort.Slice(kekvs, func(i, j int) bool { return kekvs[i].Code < kekvs[j].Code })
	for _, kekv := range kekvs {
		sheetName := buildSheetName("КЕКВ "+kekv.Code, usedNames)
		usedNames[sheetName] = struct{}{}

		if _, err := file.NewSheet(sheetName); err != nil {
			return nil, err
		}
		g.writeKEKV(file, sheetName, kekv, byKEKV[kekv.ID.String()])
	}

	file.SetActiveSheet(0)
	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *ReportGenerator) writeSummary(file *excelize.File, sheet string, report model.BudgetReport) {
	budget := report.Budget
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(sheet, cell, value)
	}

	set("A1", "Кошторис")
	set("B1", budget.Name)
	set("A2", "Тип")
	set("B2", budget.Type)
	set("A3", "Рік")
	set("B3", budget.Year)
	set("A4", "Дата")
	set("B4", formatDate(budget.Date))
	set("A5", "Загальна сума")
	set("B5", formatAmount(budget.TotalAmount))
	set("A6", "Використано")
	set("B6", formatAmount(budget.UsedAmount))
	set("A7", "Залишок")
	set("B7", formatAmount(budget.Available()))
	set("A8", "Сформовано")
	set("B8", formatDateTime(report.GeneratedAt))

	tableRow := 10
	headers := []string{"КЕКВ", "Назва", "План", "Використано", "Залишок", "Договорів"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, tableRow)
		set(cell, header)
	}

	counts := map[string]int{}
	for _, contract := range report.Contracts {
		counts[contract.KEKVID.String()]++
	}
	for i, kekv := range budget.KEKVs {
		row := tableRow + 1 + i
		set(fmt.Sprintf("A%d", row), kekv.Code)
		set(fmt.Sprintf("B%d", row), kekv.Name)
		set(fmt.Sprintf("C%d", row), formatAmount(kekv.PlannedAmount))
		set(fmt.Sprintf("D%d", row), formatAmount(kekv.UsedAmount))
		set(fmt.Sprintf("E%d", row), formatAmount(kekv.Available()))
		set(fmt.Sprintf("F%d", row), counts[kekv.ID.String()])
	}

	_ = file.SetColWidth(sheet, "A", "A", 18)
	_ = file.SetColWidth(sheet, "B", "B", 45)
	_ = file.SetColWidth(sheet, "C", "F", 16)
}

func (g *ReportGenerator) writeKEKV(file *excelize.File, sheet string, kekv model.KEKV, contracts []model.Contract) {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(sheet, cell, value)
	}

	set("A1", "КЕКВ")
	set("B1", kekv.Code)
	set("A2", "Назва")
	set("B2", kekv.Name)
	set("A3", "План")
	set("B3", formatAmount(kekv.PlannedAmount))
	set("A4", "Використано")
	set("B4", formatAmount(kekv.UsedAmount))

	row := 6
	headers := []string{"Договір", "Контрагент", "Найменування", "Од. вим.", "К-сть", "Ціна", "Сума", "Залишок"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		set(cell, header)
	}

	for _, contract := range contracts {
		row++
		set(fmt.Sprintf("A%d", row), fmt.Sprintf("№ %s від %s", contract.Number, formatDate(contract.StartDate)))
		set(fmt.Sprintf("B%d", row), contract.Contractor)
		set(fmt.Sprintf("G%d", row), formatAmount(contract.Amount))

		for _, spec := range contract.Specifications {
			row++
			set(fmt.Sprintf("C%d", row), spec.Name)
			set(fmt.Sprintf("D%d", row), spec.Unit)
			set(fmt.Sprintf("E%d", row), spec.Quantity.String())
			set(fmt.Sprintf("F%d", row), formatAmount(spec.Price))
			set(fmt.Sprintf("G%d", row), formatAmount(spec.Amount))
			set(fmt.Sprintf("H%d", row), spec.Remaining.String())
		}
	}

	_ = file.SetColWidth(sheet, "A", "A", 24)
	_ = file.SetColWidth(sheet, "B", "C", 36)
	_ = file.SetColWidth(sheet, "D", "H", 14)
}

func buildSheetName(name string, used map[string]struct{}) string {
	base := truncateRunes(sanitizeSheetName(name), maxSheetName)

	candidate := base
	counter := 2
	for {
		if _, exists := used[candidate]; !exists {
			return candidate
		}
		suffix := fmt.Sprintf("-%d", counter)
		candidate = truncateRunes(base, maxSheetName-len(suffix)) + suffix
		counter++
	}
}

func sanitizeSheetName(value string) string {
	replacer := strings.NewReplacer(
		"[", "-",
		"]", "-",
		":", "-",
		"*", "-",
		"?", "-",
		"/", "-",
		"\\", "-",
	)
	value = strings.TrimSpace(replacer.Replace(value))
	if value == "" {
		return "Лист"
	}
	return value
}

func truncateRunes(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit])
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("02.01.2006")
}

func formatDateTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("02.01.2006 15:04")
}

func formatAmount(value decimal.Decimal) string {
	return money.Format(value)
}
