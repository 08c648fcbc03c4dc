package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"

	"github.com/nurpe/koshtorys/internal/model"
)

const (
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypePDF  = "application/pdf"
)

// FileResult is a generated document ready to be sent to the caller.
type FileResult struct {
	FileName    string
	ContentType string
	Content     []byte
}

// owns hides other principals' entities behind ErrNotFound.
func owns(principal model.Principal, ownerID uuid.UUID, entity string, id uuid.UUID) error {
	if principal.UserID != ownerID {
		return fmt.Errorf("%w: %s %s", ErrNotFound, entity, id)
	}
	return nil
}

func fileName(prefix, name, ext string) string {
	part := slug.Make(name)
	if part == "" {
		return fmt.Sprintf("%s.%s", prefix, ext)
	}
	return fmt.Sprintf("%s-%s.%s", prefix, part, ext)
}

func dateOnly(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func trimmed(value string) string {
	return strings.TrimSpace(value)
}
