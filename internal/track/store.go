// internal/track/store.go
package track

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Sentinel errors for the record store.
var (
	ErrDuplicateRecord = errors.New("tracking number already exists")
	ErrRecordNotFound  = errors.New("tracking number not found")
)

const dataFileName = "kargo_data.json"

// Store keeps every Record in memory, guarded by one RWMutex, and rewrites the
// JSON file on every mutation. The file is the only persistence; a missing or
// corrupt file just means an empty store.
type Store struct {
	mu      sync.RWMutex
	path    string
	logger  *zap.Logger
	records []Record
}

// NewStore creates the data directory if needed and loads any existing records.
func NewStore(dataDir string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir %s: %w", dataDir, err)
	}
	s := &Store{
		path:   filepath.Join(dataDir, dataFileName),
		logger: logger.Named("track_store"),
	}
	s.load()
	return s, nil
}

func (s *Store) load() {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Info("No data file yet, starting empty.", zap.String("path", s.path))
		} else {
			s.logger.Warn("Failed to read data file, starting empty.", zap.Error(err))
		}
		return
	}
	var records []Record
	if err := json.Unmarshal(raw, &records); err != nil {
		s.logger.Warn("Data file is not valid JSON, starting empty.", zap.Error(err))
		return
	}
	s.records = records
	s.logger.Info("Loaded records.", zap.Int("count", len(records)))
}

// save must be called with s.mu held for writing.
func (s *Store) save() error {
	raw, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode records: %w", err)
	}
	if err := os.WriteFile(s.path, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", s.path, err)
	}
	return nil
}

// List returns a copy of all records.
func (s *Store) List() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// Get looks a record up by its (normalized) tracking number.
func (s *Store) Get(trackingNumber string) (Record, bool) {
	trackingNumber = NormalizeTrackingNumber(trackingNumber)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.records {
		if r.TrackingNumber == trackingNumber {
			return r, true
		}
	}
	return Record{}, false
}

// Insert adds a record, normalizing its tracking number and stamping the
// defaults a fresh shipment gets. A duplicate tracking number is an error.
func (s *Store) Insert(rec Record) (Record, error) {
	rec.TrackingNumber = NormalizeTrackingNumber(rec.TrackingNumber)
	if rec.Status == "" {
		rec.Status = StatusPending
	}
	if rec.EstimatedDelivery == "" {
		rec.EstimatedDelivery = EstimatedDeliveryUnknown
	}
	if rec.LastUpdated.IsZero() {
		rec.LastUpdated = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.TrackingNumber == rec.TrackingNumber {
			return Record{}, fmt.Errorf("%w: %s", ErrDuplicateRecord, rec.TrackingNumber)
		}
	}
	s.records = append(s.records, rec)
	if err := s.save(); err != nil {
		return Record{}, err
	}
	s.logger.Info("Record added.", zap.String("tracking_number", rec.TrackingNumber))
	return rec, nil
}

// InsertIfAbsent adds the record unless its tracking number is already known.
// It reports whether a record was actually inserted; a duplicate is a no-op,
// not an error.
func (s *Store) InsertIfAbsent(rec Record) (bool, error) {
	_, err := s.Insert(rec)
	if errors.Is(err, ErrDuplicateRecord) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// SetStatus updates the delivery status of one record and stamps the update time.
func (s *Store) SetStatus(trackingNumber, status string) error {
	trackingNumber = NormalizeTrackingNumber(trackingNumber)
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		if s.records[i].TrackingNumber == trackingNumber {
			s.records[i].Status = status
			s.records[i].EstimatedDelivery = EstimatedDeliveryUnknown
			s.records[i].LastUpdated = time.Now()
			return s.save()
		}
	}
	return fmt.Errorf("%w: %s", ErrRecordNotFound, trackingNumber)
}

// Delete removes one record by tracking number.
func (s *Store) Delete(trackingNumber string) error {
	trackingNumber = NormalizeTrackingNumber(trackingNumber)
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		if s.records[i].TrackingNumber == trackingNumber {
			s.records = append(s.records[:i], s.records[i+1:]...)
			if err := s.save(); err != nil {
				return err
			}
			s.logger.Info("Record deleted.", zap.String("tracking_number", trackingNumber))
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrRecordNotFound, trackingNumber)
}

// DeleteAll wipes the store.
func (s *Store) DeleteAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	if err := s.save(); err != nil {
		return err
	}
	s.logger.Info("All records deleted.")
	return nil
}

// Count returns the number of stored records.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
