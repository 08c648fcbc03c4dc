package excel

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRow   = errors.New("invalid row")
	ErrSheetMissing = errors.New("worksheet not found")
	ErrEmptyFile    = errors.New("no rows found")
)

// RowError points at the spreadsheet row that could not be read. Row is
// 1-based as shown by spreadsheet editors.
type RowError struct {
	Row    int
	Reason string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
}

func (e *RowError) Unwrap() error {
	return ErrInvalidRow
}

func rowError(row int, format string, args ...interface{}) error {
	return &RowError{Row: row, Reason: fmt.Sprintf(format, args...)}
}
