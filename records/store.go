package records

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"

	"github.com/cespare/xxhash/v2"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrInvalidName is returned for record names or extensions that are empty
	// or contain the extension separator.
	ErrInvalidName = errors.New("invalid record name")
)

const separator = "."

// Record names a value in the store as name.extension. The zero Record is the
// null record.
type Record struct {
	Name      string
	Extension string
}

func (r Record) IsNull() bool {
	return r.Name == "" && r.Extension == ""
}

func (r Record) String() string {
	if r.IsNull() {
		return "<null>"
	}
	return r.key()
}

func (r Record) key() string {
	return r.Name + separator + r.Extension
}

func (r Record) validate() error {
	if r.Name == "" || r.Extension == "" ||
		strings.Contains(r.Name, separator) || strings.Contains(r.Extension, separator) {
		return fmt.Errorf("%w: %q.%q", ErrInvalidName, r.Name, r.Extension)
	}
	return nil
}

func parseKey(key string) (Record, bool) {
	name, ext, ok := strings.Cut(key, separator)
	if !ok {
		return Record{}, false
	}
	r := Record{Name: name, Extension: ext}
	return r, r.validate() == nil
}

// Store is a flat namespace of records on top of a Backend.
type Store struct {
	backend Backend
	logger  *slog.Logger
}

// NewStore wraps backend. A nil logger discards.
func NewStore(backend Backend, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)}))
	}
	return &Store{backend: backend, logger: logger}
}

// Put creates or overwrites a record.
func (s *Store) Put(r Record, value []byte) error {
	if err := r.validate(); err != nil {
		return err
	}
	if err := s.backend.Set(r.key(), value); err != nil {
		return fmt.Errorf("put %s: %w", r, err)
	}
	s.logger.Debug("record stored", "record", r.String(), "bytes", len(value))
	return nil
}

// Value returns a record's contents.
func (s *Store) Value(r Record) ([]byte, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}
	v, err := s.backend.Get(r.key())
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", r, err)
	}
	return v, nil
}

// Destroy deletes a record.
func (s *Store) Destroy(r Record) error {
	if err := r.validate(); err != nil {
		return err
	}
	if err := s.backend.Delete(r.key()); err != nil {
		return fmt.Errorf("destroy %s: %w", r, err)
	}
	s.logger.Debug("record destroyed", "record", r.String())
	return nil
}

// RecordsWithExtension lists the records carrying ext, ordered by name.
func (s *Store) RecordsWithExtension(ext string) ([]Record, error) {
	keys, err := s.backend.Keys("")
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	var out []Record
	for _, k := range keys {
		if r, ok := parseKey(k); ok && r.Extension == ext {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) NumberOfRecordsWithExtension(ext string) (int, error) {
	recs, err := s.RecordsWithExtension(ext)
	return len(recs), err
}

// RecordWithExtensionAtIndex returns the i-th record carrying ext, or the null
// record when i is out of range.
func (s *Store) RecordWithExtensionAtIndex(ext string, i int) (Record, error) {
	recs, err := s.RecordsWithExtension(ext)
	if err != nil {
		return Record{}, err
	}
	if i < 0 || i >= len(recs) {
		return Record{}, nil
	}
	return recs[i], nil
}

// DestroyRecordsWithExtension deletes every record carrying ext.
func (s *Store) DestroyRecordsWithExtension(ext string) error {
	recs, err := s.RecordsWithExtension(ext)
	if err != nil {
		return err
	}
	for _, r := range recs {
		if err := s.Destroy(r); err != nil {
			return err
		}
	}
	return nil
}

// Checksum hashes every key and value in the store. Any change to the store's
// contents changes the checksum.
func (s *Store) Checksum() (uint64, error) {
	keys, err := s.backend.Keys("")
	if err != nil {
		return 0, fmt.Errorf("checksum: %w", err)
	}
	h := xxhash.New()
	var lenBuf [binary.MaxVarintLen64]byte
	for _, k := range keys {
		v, err := s.backend.Get(k)
		if err != nil {
			return 0, fmt.Errorf("checksum %s: %w", k, err)
		}
		h.Write(binary.AppendUvarint(lenBuf[:0], uint64(len(k))))
		h.WriteString(k)
		h.Write(binary.AppendUvarint(lenBuf[:0], uint64(len(v))))
		h.Write(v)
	}
	return h.Sum64(), nil
}
