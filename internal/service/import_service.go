package service

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/nurpe/koshtorys/internal/metrics"
	"github.com/nurpe/koshtorys/internal/model"
)

type SpecificationParser interface {
	ParseXLSX(r io.Reader, kekvCode string) (*model.ImportResult, error)
	ParseCSV(r io.Reader, kekvCode string) (*model.ImportResult, error)
}

type TemplateGenerator interface {
	Generate(kekvCode string) ([]byte, error)
}

// ImportService turns uploaded specification spreadsheets into line items
// for a new contract. It holds no state and writes nothing.
type ImportService struct {
	parser    SpecificationParser
	templates TemplateGenerator
	metrics   *metrics.LedgerMetrics
	log       zerolog.Logger
}

type ImportInput struct {
	KEKVCode string
	FileName string
	Content  io.Reader
}

func NewImportService(parser SpecificationParser, templates TemplateGenerator, m *metrics.LedgerMetrics, log zerolog.Logger) *ImportService {
	return &ImportService{
		parser:    parser,
		templates: templates,
		metrics:   m,
		log:       log.With().Str("component", "import_service").Logger(),
	}
}

func (s *ImportService) Import(ctx context.Context, input ImportInput) (result *model.ImportResult, err error) {
	started := time.Now()
	defer func() { s.metrics.Observe(metrics.OpImport, started, err, IsNotFound) }()

	code := trimmed(input.KEKVCode)
	if code == "" {
		return nil, invalid("kekv code is required")
	}
	if input.Content == nil {
		return nil, invalid("file is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(input.FileName)) {
	case ".csv":
		result, err = s.parser.ParseCSV(input.Content, code)
	case ".xlsx", "":
		result, err = s.parser.ParseXLSX(input.Content, code)
	default:
		return nil, invalid("unsupported file type %q, expected .xlsx or .csv", filepath.Ext(input.FileName))
	}
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("kekv", code).
		Int("items", len(result.Items)).
		Str("total", result.Total.StringFixed(2)).
		Msg("specification imported")
	return result, nil
}

func (s *ImportService) Template(kekvCode string) (*FileResult, error) {
	code := trimmed(kekvCode)
	if code == "" {
		return nil, invalid("kekv code is required")
	}
	content, err := s.templates.Generate(code)
	if err != nil {
		return nil, fmt.Errorf("generate template: %w", err)
	}
	return &FileResult{
		FileName:    fmt.Sprintf("specification_template_%s.xlsx", code),
		ContentType: ContentTypeXLSX,
		Content:     content,
	}, nil
}
