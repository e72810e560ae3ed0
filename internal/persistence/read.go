package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/JustJay7/uyap-extractor/internal/database"
)

// ErrNotFound is returned by the read methods for missing rows.
var ErrNotFound = errors.New("record not found")

// StoredResult is a query result as stored, with the payload left encoded.
type StoredResult struct {
	BorcluID  string          `json:"borclu_id"`
	Type      string          `json:"sorgu_tipi"`
	Payload   json.RawMessage `json:"sorgu_verisi"`
	Timestamp time.Time       `json:"timestamp"`
}

// ListCases returns one page of cases, newest case numbers first, and the
// total count.
func (s *Store) ListCases(ctx context.Context, page, limit int) ([]database.File, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	db := s.db.WithContext(ctx)
	var total int64
	if err := db.Model(&database.File{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count cases: %w", err)
	}

	var files []database.File
	err := db.Order("eYil DESC, eNo DESC, dosyaNo DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&files).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list cases: %w", err)
	}
	return files, total, nil
}

// GetCase returns the case with its details and debtors.
func (s *Store) GetCase(ctx context.Context, fileID string) (*database.File, error) {
	var file database.File
	err := s.db.WithContext(ctx).
		Preload("Detail").
		Preload("Borclular").
		Where("file_id = ?", fileID).
		Take(&file).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load case: %w", err)
	}
	return &file, nil
}

// DebtorsOf returns the debtors of a case ordered by name.
func (s *Store) DebtorsOf(ctx context.Context, fileID string) ([]database.Borclu, error) {
	var debtors []database.Borclu
	err := s.db.WithContext(ctx).Where("file_id = ?", fileID).Order("ad").Find(&debtors).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load debtors: %w", err)
	}
	return debtors, nil
}

// QueryResult returns the stored result of one query type for a debtor.
func (s *Store) QueryResult(ctx context.Context, borcluID, sorguTipi string) (*StoredResult, error) {
	var row database.BorcluSorgu
	err := s.db.WithContext(ctx).
		Where("borclu_id = ? AND sorgu_tipi = ?", borcluID, sorguTipi).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load query result: %w", err)
	}
	res := toStored(row)
	return &res, nil
}

// QueryResults returns every stored result of a debtor ordered by type.
func (s *Store) QueryResults(ctx context.Context, borcluID string) ([]StoredResult, error) {
	var rows []database.BorcluSorgu
	err := s.db.WithContext(ctx).Where("borclu_id = ?", borcluID).Order("sorgu_tipi").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load query results: %w", err)
	}
	out := make([]StoredResult, 0, len(rows))
	for _, row := range rows {
		out = append(out, toStored(row))
	}
	return out, nil
}

func toStored(row database.BorcluSorgu) StoredResult {
	payload := json.RawMessage(row.SorguVerisi)
	if !json.Valid(payload) {
		// Rows written by hand may hold plain text.
		payload, _ = json.Marshal(row.SorguVerisi)
	}
	return StoredResult{
		BorcluID:  row.BorcluID,
		Type:      row.SorguTipi,
		Payload:   payload,
		Timestamp: row.Timestamp,
	}
}
