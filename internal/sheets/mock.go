package sheets

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/model"
	"github.com/Veraticus/tally/internal/reconcile"
)

// MockStore is an in-memory TableStore for testing. Applied writes are
// recorded and folded back into the stored tables, so a second run sees
// the result of the first.
type MockStore struct {
	ReadErrors  map[string]error
	ApplyErrors map[string]error
	tables      map[string]model.TableSnapshot
	ApplyCalls  []ApplyCall
	Stamps      []StampCall
	ReadCount   int
	mu          sync.Mutex
}

// ApplyCall represents a single call to ApplyWrites.
type ApplyCall struct {
	Error  error
	Table  string
	Writes []model.CellWrite
}

// StampCall represents a single call to StampUpdated.
type StampCall struct {
	Table string
	Cell  string
	Value string
}

// NewMockStore creates a mock store holding the given tables.
func NewMockStore(tables ...model.TableSnapshot) *MockStore {
	m := &MockStore{
		tables:      make(map[string]model.TableSnapshot, len(tables)),
		ReadErrors:  make(map[string]error),
		ApplyErrors: make(map[string]error),
	}
	for _, t := range tables {
		m.tables[t.Name] = t
	}
	return m
}

// ReadTable implements service.TableStore.
func (m *MockStore) ReadTable(_ context.Context, table string) (model.TableSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ReadCount++
	if err := m.ReadErrors[table]; err != nil {
		return model.TableSnapshot{}, err
	}
	snap, ok := m.tables[table]
	if !ok {
		return model.TableSnapshot{}, fmt.Errorf("%w: %s", common.ErrTableNotFound, table)
	}
	return copySnapshot(snap), nil
}

// ApplyWrites implements service.TableStore.
func (m *MockStore) ApplyWrites(_ context.Context, table string, writes []model.CellWrite) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	err := m.ApplyErrors[table]
	m.ApplyCalls = append(m.ApplyCalls, ApplyCall{Table: table, Writes: writes, Error: err})
	if err != nil {
		return err
	}

	snap := m.tables[table]
	for _, w := range writes {
		letters, row, perr := splitRange(w.Range)
		if perr != nil {
			return perr
		}
		col, perr := reconcile.ColumnIndex(letters)
		if perr != nil {
			return perr
		}
		setCell(&snap, col, row, fmt.Sprint(w.Value))
	}
	m.tables[table] = snap
	return nil
}

// StampUpdated implements service.Stamper.
func (m *MockStore) StampUpdated(_ context.Context, table, cell, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Stamps = append(m.Stamps, StampCall{Table: table, Cell: cell, Value: value})
	return nil
}

// Table returns a copy of the stored table.
func (m *MockStore) Table(name string) model.TableSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return copySnapshot(m.tables[name])
}

// GetApplyCalls returns a copy of all apply calls.
func (m *MockStore) GetApplyCalls() []ApplyCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	calls := make([]ApplyCall, len(m.ApplyCalls))
	copy(calls, m.ApplyCalls)
	return calls
}

func copySnapshot(s model.TableSnapshot) model.TableSnapshot {
	out := model.TableSnapshot{Name: s.Name, Header: append([]string(nil), s.Header...)}
	for _, r := range s.Rows {
		out.Rows = append(out.Rows, model.Row{Index: r.Index, Cells: append([]string(nil), r.Cells...)})
	}
	return out
}

// splitRange splits "AB12" into its letters and row number.
func splitRange(rng string) (string, int, error) {
	for i, ch := range rng {
		if ch >= '0' && ch <= '9' {
			row, err := strconv.Atoi(rng[i:])
			if err != nil || i == 0 {
				break
			}
			return rng[:i], row, nil
		}
	}
	return "", 0, fmt.Errorf("invalid range %q", rng)
}

func setCell(s *model.TableSnapshot, col, rowNum int, value string) {
	for i := range s.Rows {
		if s.Rows[i].Index != rowNum {
			continue
		}
		for len(s.Rows[i].Cells) <= col {
			s.Rows[i].Cells = append(s.Rows[i].Cells, "")
		}
		s.Rows[i].Cells[col] = value
		return
	}
}
