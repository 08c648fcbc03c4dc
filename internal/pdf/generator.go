package pdf

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"

	"github.com/nurpe/koshtorys/internal/model"
	"github.com/nurpe/koshtorys/internal/money"
)

var (
	//go:embed fonts/DejaVuSansCondensed.ttf
	regularFont []byte
	//go:embed fonts/DejaVuSansCondensed-Bold.ttf
	boldFont []byte
)

const fontName = "Body"

type Generator struct {
	regular []byte
	bold    []byte
}

// NewGenerator prints with the bundled DejaVu font unless fontPath names
// another TTF, which then serves both styles.
func NewGenerator(fontPath string) (*Generator, error) {
	if fontPath == "" {
		return &Generator{regular: regularFont, bold: boldFont}, nil
	}
	font, err := os.ReadFile(fontPath)
	if err != nil {
		return nil, fmt.Errorf("read pdf font: %w", err)
	}
	if len(font) == 0 {
		return nil, fmt.Errorf("font data is empty")
	}
	return &Generator{regular: font, bold: font}, nil
}

type writer struct {
	pdf *gofpdf.Fpdf
}

func (w *writer) setFont(style string, size float64) {
	w.pdf.SetFont(fontName, style, size)
}

func (w *writer) line(h float64, text, align string) {
	w.pdf.CellFormat(0, h, text, "", 1, align, false, 0, "")
}

// Generate prints the specification of a contract: header, line items
// grouped by section with subtotals, total and signature lines.
func (g *Generator) Generate(contract model.Contract) ([]byte, error) {
	regular, bold := g.regular, g.bold
	if len(regular) == 0 {
		regular, bold = regularFont, boldFont
	}

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddUTF8FontFromBytes(fontName, "", regular)
	pdf.AddUTF8FontFromBytes(fontName, "B", bold)
	pdf.AddPage()

	w := &writer{pdf: pdf}

	w.setFont("B", 14)
	w.line(10, fmt.Sprintf("Специфікація до договору № %s від %s", contract.Number, formatDate(contract.StartDate)), "C")

	w.setFont("", 11)
	if contract.Name != "" {
		w.line(6, contract.Name, "C")
	}
	w.line(6, fmt.Sprintf("Постачальник: %s", safeValue(contract.Contractor)), "L")
	kekvCode := ""
	if contract.KEKV != nil {
		kekvCode = contract.KEKV.Code
		w.line(6, fmt.Sprintf("КЕКВ: %s %s", contract.KEKV.Code, contract.KEKV.Name), "L")
	}
	if contract.DKCode != "" {
		w.line(6, fmt.Sprintf("ДК 021:2015: %s %s", contract.DKCode, contract.DKName), "L")
	}
	w.line(6, fmt.Sprintf("Строк дії: %s - %s", formatDate(contract.StartDate), formatDate(contract.EndDate)), "L")
	pdf.Ln(4)

	withServices := model.TracksSections(kekvCode)
	headers := []string{"№", "Найменування", "Код", "Од. вим.", "К-сть", "Ціна", "Сума", "Залишок"}
	widths := []float64{10, 92, 30, 22, 22, 32, 34, 25}
	if withServices {
		headers = []string{"№", "Найменування", "Код", "Од. вим.", "К-сть", "Ціна", "К-сть обсл.", "Сума", "Залишок"}
		widths = []float64{10, 80, 26, 22, 20, 30, 22, 32, 25}
	}
	drawTableRow(w, headers, widths, true)

	var section model.Section
	sectionTotal := decimal.Zero
	number := 0
	flush := func() {
		if withServices && section.Title() != "" {
			w.setFont("B", 10)
			w.line(7, fmt.Sprintf("Разом %s: %s", strings.ToLower(section.Title()), money.Format(sectionTotal)), "R")
		}
	}
	for i, spec := range contract.Specifications {
		if withServices && (i == 0 || spec.Section != section) {
			if i > 0 {
				flush()
			}
			section = spec.Section
			sectionTotal = decimal.Zero
			number = 0
			if section.Title() != "" {
				w.setFont("B", 10)
				w.line(7, section.Title(), "L")
			}
		}
		number++
		sectionTotal = sectionTotal.Add(spec.Amount)

		row := []string{fmt.Sprint(number), spec.Name, spec.Code, spec.Unit, spec.Quantity.String(), money.Format(spec.Price)}
		if withServices {
			count := ""
			if spec.ServiceCount != nil {
				count = fmt.Sprint(*spec.ServiceCount)
			}
			row = append(row, count)
		}
		row = append(row, money.Format(spec.Amount), spec.Remaining.String())
		drawTableRow(w, row, widths, false)
	}
	if len(contract.Specifications) > 0 {
		flush()
	}

	pdf.Ln(2)
	w.setFont("B", 11)
	w.line(6, fmt.Sprintf("Всього за специфікацією: %s грн", money.Format(contract.SpecificationsTotal())), "R")
	w.line(6, fmt.Sprintf("Сума договору: %s грн", money.Format(contract.Amount)), "R")

	pdf.Ln(8)
	w.setFont("", 11)
	w.line(6, "Замовник: ______________________", "L")
	w.line(6, fmt.Sprintf("Постачальник: ______________________ /%s/", safeValue(contract.Contractor)), "L")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func drawTableRow(w *writer, cols []string, widths []float64, header bool) {
	style := ""
	if header {
		style = "B"
	}
	w.setFont(style, 9)
	for i, col := range cols {
		align := "L"
		if i > 3 {
			align = "R"
		}
		w.pdf.CellFormat(widths[i], 7, col, "1", 0, align, false, 0, "")
	}
	w.pdf.Ln(-1)
}

func safeValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("02.01.2006")
}
