package sheets

import (
	"context"
	"fmt"
	"sync"
)

// Operation names reported by Memory.Calls and accepted by Memory.Fail.
const (
	OpCreate   = "create"
	OpFind     = "find"
	OpDelete   = "delete"
	OpGet      = "get"
	OpGetRange = "getRange"
	OpSetRange = "setRange"
	OpAppend   = "append"
	OpBatchSet = "batchSet"
	OpFormat   = "format"
)

// Memory is an in-process Store. It backs the "memory" store backend for
// local runs and is the fake used across the test suites.
type Memory struct {
	mu       sync.Mutex
	docs     map[string]*memDoc
	order    []string
	seq      int
	calls    map[string]int
	failures map[string]error
}

type memDoc struct {
	name  string
	kind  string
	cells [][]string
	bold  []FormatBoldRequest
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		docs:     map[string]*memDoc{},
		calls:    map[string]int{},
		failures: map[string]error{},
	}
}

// Seed adds a document with a fixed id and contents.
func (m *Memory) Seed(id, name string, rows Grid) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := &memDoc{name: name, kind: KindSpreadsheet}
	for _, r := range rows {
		d.cells = append(d.cells, append([]string(nil), r...))
	}
	if _, ok := m.docs[id]; !ok {
		m.order = append(m.order, id)
	}
	m.docs[id] = d
}

// Fail makes every later op on documentID return err. An empty documentID
// matches any document. A nil err clears the failure.
func (m *Memory) Fail(op, documentID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := op + "|" + documentID
	if err == nil {
		delete(m.failures, key)
		return
	}
	m.failures[key] = err
}

func (m *Memory) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

func (m *Memory) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		n += c
	}
	return n
}

// Rows returns a copy of a document's cells with trailing empty rows removed.
func (m *Memory) Rows(documentID string) Grid {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[documentID]
	if !ok {
		return nil
	}
	out := make(Grid, 0, len(d.cells))
	for _, r := range d.cells[:d.used()] {
		out = append(out, trimRow(append([]string(nil), r...)))
	}
	return out
}

func (m *Memory) Formats(documentID string) []FormatBoldRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.docs[documentID]; ok {
		return append([]FormatBoldRequest(nil), d.bold...)
	}
	return nil
}

func (m *Memory) DocumentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs)
}

// enter records the call and returns the injected failure, if any. m.mu must be held.
func (m *Memory) enter(op, documentID string) error {
	m.calls[op]++
	if err, ok := m.failures[op+"|"+documentID]; ok {
		return err
	}
	if err, ok := m.failures[op+"|"]; ok {
		return err
	}
	return nil
}

func (m *Memory) doc(documentID string) (*memDoc, error) {
	d, ok := m.docs[documentID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, documentID)
	}
	return d, nil
}

func (m *Memory) CreateDocument(_ context.Context, req CreateDocumentRequest) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpCreate, ""); err != nil {
		return Document{}, err
	}
	m.seq++
	id := fmt.Sprintf("mem-%04d", m.seq)
	m.docs[id] = &memDoc{name: req.Name, kind: req.Kind}
	m.order = append(m.order, id)
	return Document{ID: id, Name: req.Name}, nil
}

func (m *Memory) FindDocuments(_ context.Context, req FindDocumentsRequest) ([]Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpFind, ""); err != nil {
		return nil, err
	}
	var out []Document
	for _, id := range m.order {
		d, ok := m.docs[id]
		if !ok {
			continue
		}
		if d.name == req.Name && (req.Kind == "" || d.kind == req.Kind) {
			out = append(out, Document{ID: id, Name: d.name})
		}
	}
	return out, nil
}

func (m *Memory) DeleteDocument(_ context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpDelete, documentID); err != nil {
		return err
	}
	if _, err := m.doc(documentID); err != nil {
		return err
	}
	delete(m.docs, documentID)
	return nil
}

func (m *Memory) GetDocument(_ context.Context, documentID string) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpGet, documentID); err != nil {
		return Document{}, err
	}
	d, err := m.doc(documentID)
	if err != nil {
		return Document{}, err
	}
	return Document{ID: documentID, Name: d.name}, nil
}

func (m *Memory) GetRange(_ context.Context, req GetRangeRequest) (Grid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpGetRange, req.DocumentID); err != nil {
		return nil, err
	}
	d, err := m.doc(req.DocumentID)
	if err != nil {
		return nil, err
	}
	rng, err := parseA1(req.Range)
	if err != nil {
		return nil, err
	}
	last := d.used() - 1
	if rng.endRow >= 0 && rng.endRow < last {
		last = rng.endRow
	}
	var out Grid
	for r := rng.startRow; r <= last; r++ {
		row := make([]string, 0, rng.endCol-rng.startCol+1)
		for c := rng.startCol; c <= rng.endCol; c++ {
			row = append(row, cellAt(d.cells[r], c))
		}
		out = append(out, trimRow(row))
	}
	return out, nil
}

func (m *Memory) SetRange(_ context.Context, req SetRangeRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpSetRange, req.DocumentID); err != nil {
		return err
	}
	d, err := m.doc(req.DocumentID)
	if err != nil {
		return err
	}
	rng, err := parseA1(req.Range)
	if err != nil {
		return err
	}
	d.write(rng.startRow, rng.startCol, req.Rows)
	return nil
}

func (m *Memory) AppendRows(_ context.Context, req AppendRowsRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpAppend, req.DocumentID); err != nil {
		return err
	}
	d, err := m.doc(req.DocumentID)
	if err != nil {
		return err
	}
	rng, err := parseA1(req.Range)
	if err != nil {
		return err
	}
	d.write(d.used(), rng.startCol, req.Rows)
	return nil
}

func (m *Memory) BatchSetRanges(_ context.Context, req BatchSetRangesRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpBatchSet, req.DocumentID); err != nil {
		return err
	}
	d, err := m.doc(req.DocumentID)
	if err != nil {
		return err
	}
	parsed := make([]a1Range, len(req.Data))
	for i, rv := range req.Data {
		if parsed[i], err = parseA1(rv.Range); err != nil {
			return err
		}
	}
	for i, rv := range req.Data {
		d.write(parsed[i].startRow, parsed[i].startCol, rv.Rows)
	}
	return nil
}

func (m *Memory) FormatBold(_ context.Context, req FormatBoldRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpFormat, req.DocumentID); err != nil {
		return err
	}
	d, err := m.doc(req.DocumentID)
	if err != nil {
		return err
	}
	d.bold = append(d.bold, req)
	return nil
}

// used is the number of rows up to and including the last non-empty one.
func (d *memDoc) used() int {
	n := len(d.cells)
	for n > 0 && len(trimRow(d.cells[n-1])) == 0 {
		n--
	}
	return n
}

func (d *memDoc) write(startRow, startCol int, rows Grid) {
	for i, row := range rows {
		r := startRow + i
		for len(d.cells) <= r {
			d.cells = append(d.cells, nil)
		}
		for j, v := range row {
			c := startCol + j
			for len(d.cells[r]) <= c {
				d.cells[r] = append(d.cells[r], "")
			}
			d.cells[r][c] = v
		}
	}
}

func cellAt(row []string, col int) string {
	if col < len(row) {
		return row[col]
	}
	return ""
}

func trimRow(row []string) []string {
	n := len(row)
	for n > 0 && row[n-1] == "" {
		n--
	}
	return row[:n]
}
