// Package archive keeps the list of saved invoices in the local key-value store.
package archive

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/garyjia/invoice-desk/internal/domain/entity"
	"github.com/garyjia/invoice-desk/internal/kvstore"
	"go.uber.org/zap"
)

// Key is the key-value entry holding the JSON array of saved invoices
const Key = "invoices"

// ErrCorrupted reports that the stored archive could not be decoded.
// List still returns an empty, usable result alongside it.
var ErrCorrupted = errors.New("saved invoices could not be decoded")

// Store is an unsynchronized read-modify-write list of InvoiceRecords
type Store struct {
	kv     kvstore.Store
	logger *zap.Logger
}

// NewStore creates an archive over kv
func NewStore(kv kvstore.Store, logger *zap.Logger) *Store {
	return &Store{kv: kv, logger: logger}
}

// List returns the saved invoices in insertion order. Undecodable storage
// yields an empty list and an error wrapping ErrCorrupted.
func (s *Store) List() ([]entity.InvoiceRecord, error) {
	records, err := s.load()
	if errors.Is(err, ErrCorrupted) {
		return []entity.InvoiceRecord{}, err
	}
	return records, err
}

// Append adds record to the end of the archive. Invoice numbers are not
// checked for uniqueness.
func (s *Store) Append(record entity.InvoiceRecord) error {
	records, err := s.load()
	if err != nil {
		return err
	}

	records = append(records, record.Clone())
	if err := s.store(records); err != nil {
		return err
	}

	s.logger.Info("Invoice saved",
		zap.String("invoice_number", record.InvoiceNumber),
		zap.Int("archive_size", len(records)))
	return nil
}

// Remove deletes every record whose number equals invoiceNumber and
// returns how many were removed.
func (s *Store) Remove(invoiceNumber string) (int, error) {
	records, err := s.load()
	if err != nil {
		return 0, err
	}

	kept := make([]entity.InvoiceRecord, 0, len(records))
	for _, r := range records {
		if r.InvoiceNumber != invoiceNumber {
			kept = append(kept, r)
		}
	}

	removed := len(records) - len(kept)
	if err := s.store(kept); err != nil {
		return 0, err
	}

	s.logger.Info("Invoice deleted",
		zap.String("invoice_number", invoiceNumber),
		zap.Int("removed", removed))
	return removed, nil
}

// Find returns the last record with the given number
func (s *Store) Find(invoiceNumber string) (entity.InvoiceRecord, bool, error) {
	records, err := s.load()
	if err != nil {
		return entity.InvoiceRecord{}, false, err
	}
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].InvoiceNumber == invoiceNumber {
			return records[i].Clone(), true, nil
		}
	}
	return entity.InvoiceRecord{}, false, nil
}

// Clear empties the archive, discarding corrupted contents too
func (s *Store) Clear() error {
	if err := s.kv.Delete(Key); err != nil {
		return fmt.Errorf("failed to clear invoices: %w", err)
	}
	s.logger.Info("All invoices deleted")
	return nil
}

func (s *Store) load() ([]entity.InvoiceRecord, error) {
	raw, ok, err := s.kv.Get(Key)
	if err != nil {
		return nil, fmt.Errorf("failed to read invoices: %w", err)
	}
	if !ok || raw == "" {
		return []entity.InvoiceRecord{}, nil
	}

	var records []entity.InvoiceRecord
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		s.logger.Warn("Saved invoices are corrupted", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	if records == nil {
		records = []entity.InvoiceRecord{}
	}
	return records, nil
}

func (s *Store) store(records []entity.InvoiceRecord) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to encode invoices: %w", err)
	}
	if err := s.kv.Set(Key, string(data)); err != nil {
		return fmt.Errorf("failed to write invoices: %w", err)
	}
	return nil
}
