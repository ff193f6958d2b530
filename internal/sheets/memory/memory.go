package memory

import (
	"context"
	"fmt"
	"sync"

	"entrate/internal/core"
	ports "entrate/internal/sheets"
)

var _ ports.RecordExporter = (*Store)(nil)

// Store keeps exported rows in memory, for local runs and tests.
type Store struct {
	mu   sync.Mutex
	rows []core.ExportRow
	fail error
}

func New() *Store {
	return &Store{}
}

// AppendRecord stores the row and returns a synthetic row reference.
func (s *Store) AppendRecord(_ context.Context, row core.ExportRow) (string, error) {
	if err := row.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return "", s.fail
	}
	s.rows = append(s.rows, row)
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

// Rows returns a copy of the exported rows in append order.
func (s *Store) Rows() []core.ExportRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.ExportRow(nil), s.rows...)
}

// FailWith makes subsequent appends return err; nil restores normal behavior.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}
