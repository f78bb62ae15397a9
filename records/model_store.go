package records

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/cbehopkins/treepool/pool"
)

// DefaultMemoizedModels is the ModelStore window size used when none is given.
const DefaultMemoizedModels = 5

// Model is a record whose value is an exported expression tree. The tree is
// imported into the pool lazily and kept until the model is evicted.
type Model struct {
	record     Record
	store      *Store
	pool       *pool.Pool
	expression pool.Reference
	evicted    bool
}

func (m *Model) Record() Record {
	return m.record
}

func (m *Model) IsNull() bool {
	return m.record.IsNull()
}

// IsDefined reports whether the record holds a non-empty value.
func (m *Model) IsDefined() bool {
	if m.IsNull() {
		return false
	}
	v, err := m.store.Value(m.record)
	return err == nil && len(v) > 0
}

// Expression returns an owned Reference to the model's tree, importing it on
// first use. The Reference aliases the memoized tree: edits through it are seen
// by later callers until the model is evicted. Null and undefined models return
// an undefined Reference. When the pool is full the allocation-failure Reference
// is returned and nothing is memoized. Models evicted from their ModelStore
// import a fresh tree on every call.
func (m *Model) Expression() (pool.Reference, error) {
	if m.expression.IsDefined() {
		return m.expression.Copy(), nil
	}
	if m.IsNull() {
		return m.pool.Undefined(), nil
	}
	v, err := m.store.Value(m.record)
	if errors.Is(err, ErrNotFound) || (err == nil && len(v) == 0) {
		return m.pool.Undefined(), nil
	}
	if err != nil {
		return m.pool.Undefined(), err
	}
	ref, err := m.pool.Import(v)
	if err != nil {
		return m.pool.Undefined(), fmt.Errorf("import %s: %w", m.record, err)
	}
	if ref.IsAllocationFailure() || m.evicted {
		return ref, nil
	}
	m.expression = ref.Copy()
	return ref, nil
}

// SetExpression stores ref's subtree as the model's value. An allocation
// failure is not stored.
func (m *Model) SetExpression(ref pool.Reference) error {
	if m.IsNull() {
		return fmt.Errorf("%w: null record", ErrInvalidName)
	}
	if ref.IsAllocationFailure() {
		return fmt.Errorf("store %s: %w", m.record, errIncomplete)
	}
	if err := m.store.Put(m.record, m.pool.Export(ref)); err != nil {
		return err
	}
	m.tidy()
	return nil
}

var errIncomplete = errors.New("expression is incomplete")

func (m *Model) tidy() {
	if m.expression.IsDefined() {
		m.expression.Release()
	}
}

func (m *Model) evict() {
	m.tidy()
	m.evicted = true
}

// ModelStore exposes the records of one extension as a list of models. A
// window of consecutive models is memoized; moving outside it evicts models at
// the far end. When the underlying store changes, every memoized model is
// dropped.
type ModelStore struct {
	store     *Store
	pool      *pool.Pool
	extension string
	logger    *slog.Logger

	memo     []*Model
	first    int
	checksum uint64
}

// NewModelStore creates a model store over the records of store carrying
// extension. memoized <= 0 selects DefaultMemoizedModels.
func NewModelStore(store *Store, p *pool.Pool, extension string, memoized int, logger *slog.Logger) *ModelStore {
	if memoized <= 0 {
		memoized = DefaultMemoizedModels
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)}))
	}
	return &ModelStore{
		store:     store,
		pool:      p,
		extension: extension,
		logger:    logger,
		memo:      make([]*Model, memoized),
	}
}

func (s *ModelStore) Extension() string {
	return s.extension
}

func (s *ModelStore) NumberOfModels() (int, error) {
	return s.store.NumberOfRecordsWithExtension(s.extension)
}

// NumberOfDefinedModels counts the models with a non-empty value.
func (s *ModelStore) NumberOfDefinedModels() (int, error) {
	n, err := s.NumberOfModels()
	if err != nil {
		return 0, err
	}
	defined := 0
	for i := 0; i < n; i++ {
		m, err := s.ModelAtIndex(i)
		if err != nil {
			return 0, err
		}
		if m.IsDefined() {
			defined++
		}
	}
	return defined, nil
}

// DefinedModelAtIndex returns the i-th defined model, skipping undefined ones.
// A null model is returned when there are not enough.
func (s *ModelStore) DefinedModelAtIndex(i int) (*Model, error) {
	n, err := s.NumberOfModels()
	if err != nil {
		return nil, err
	}
	seen := 0
	for j := 0; j < n; j++ {
		m, err := s.ModelAtIndex(j)
		if err != nil {
			return nil, err
		}
		if !m.IsDefined() {
			continue
		}
		if seen == i {
			return m, nil
		}
		seen++
	}
	return s.nullModel(), nil
}

// ModelAtIndex returns the i-th model, sliding the memo window to cover i. An
// out-of-range index returns a null model.
func (s *ModelStore) ModelAtIndex(i int) (*Model, error) {
	if i < 0 {
		return s.nullModel(), nil
	}
	s.slide(i)
	cs, err := s.store.Checksum()
	if err != nil {
		return nil, err
	}
	if cs != s.checksum {
		s.logger.Debug("record store changed, dropping memoized models",
			"extension", s.extension)
		s.invalidate()
		s.checksum = cs
	}
	slot := i - s.first
	if s.memo[slot] == nil {
		rec, err := s.store.RecordWithExtensionAtIndex(s.extension, i)
		if err != nil {
			return nil, err
		}
		if rec.IsNull() {
			return s.nullModel(), nil
		}
		s.memo[slot] = &Model{record: rec, store: s.store, pool: s.pool}
	}
	return s.memo[slot], nil
}

// slide moves the window so it contains i, evicting the models that fall off.
func (s *ModelStore) slide(i int) {
	k := len(s.memo)
	var delta int
	switch {
	case i < s.first:
		delta = i - s.first
	case i >= s.first+k:
		delta = i - (s.first + k - 1)
	default:
		return
	}
	next := make([]*Model, k)
	for j, m := range s.memo {
		if m == nil {
			continue
		}
		if dst := j - delta; dst >= 0 && dst < k {
			next[dst] = m
		} else {
			m.evict()
		}
	}
	s.memo = next
	s.first += delta
}

func (s *ModelStore) invalidate() {
	for j, m := range s.memo {
		if m != nil {
			m.evict()
			s.memo[j] = nil
		}
	}
}

func (s *ModelStore) nullModel() *Model {
	return &Model{store: s.store, pool: s.pool, evicted: true}
}

// Resolve returns an owned Reference to the tree stored under name, or false
// when there is no such record or it is empty.
func (s *ModelStore) Resolve(name string) (pool.Reference, bool) {
	recs, err := s.store.RecordsWithExtension(s.extension)
	if err != nil {
		s.logger.Warn("resolve failed", "name", name, "error", err)
		return s.pool.Undefined(), false
	}
	for i, r := range recs {
		if r.Name != name {
			continue
		}
		m, err := s.ModelAtIndex(i)
		if err != nil {
			s.logger.Warn("resolve failed", "name", name, "error", err)
			return s.pool.Undefined(), false
		}
		ref, err := m.Expression()
		if err != nil {
			s.logger.Warn("resolve failed", "name", name, "error", err)
			return s.pool.Undefined(), false
		}
		return ref, ref.IsDefined()
	}
	return s.pool.Undefined(), false
}

// RemoveAll destroys every record of the store's extension.
func (s *ModelStore) RemoveAll() error {
	s.invalidate()
	return s.store.DestroyRecordsWithExtension(s.extension)
}

// Close releases every memoized expression. The ModelStore stays usable.
func (s *ModelStore) Close() {
	s.invalidate()
}
