package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	ports "rtadmin/internal/sheets"
)

// Store is an in-process ledger used when no spreadsheet is configured.
type Store struct {
	mu   sync.Mutex
	rows map[string]map[int64]ports.LedgerRow
}

var _ ports.Ledger = (*Store)(nil)

func New() *Store {
	return &Store{rows: make(map[string]map[int64]ports.LedgerRow)}
}

func (s *Store) Upsert(_ context.Context, row ports.LedgerRow) error {
	if row.Kind == "" || row.ID <= 0 {
		return fmt.Errorf("%w %q/%d", ports.ErrInvalidRow, row.Kind, row.ID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	byID, ok := s.rows[row.Kind]
	if !ok {
		byID = make(map[int64]ports.LedgerRow)
		s.rows[row.Kind] = byID
	}
	row.Cells = append([]string(nil), row.Cells...)
	byID[row.ID] = row
	return nil
}

func (s *Store) Delete(_ context.Context, kind string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows[kind], id)
	return nil
}

// Rows returns the rows of kind ordered by id.
func (s *Store) Rows(_ context.Context, kind string) ([]ports.LedgerRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ports.LedgerRow, 0, len(s.rows[kind]))
	for _, r := range s.rows[kind] {
		r.Cells = append([]string(nil), r.Cells...)
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
