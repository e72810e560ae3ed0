package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/JustJay7/uyap-extractor/internal/database"
	"github.com/JustJay7/uyap-extractor/internal/metrics"
	"github.com/JustJay7/uyap-extractor/pkg/logger"
)

// Store writes documents to the JSON backup and the relational store. The
// two are independent: either may fail without blocking the other.
type Store struct {
	db     *gorm.DB
	backup *Backup
	log    *logger.Logger
	now    func() time.Time
}

// NewStore creates a store. backup may be nil to skip the JSON file.
func NewStore(db *gorm.DB, backup *Backup, log *logger.Logger) *Store {
	if log == nil {
		log = logger.NewNop()
	}
	return &Store{db: db, backup: backup, log: log, now: time.Now}
}

// Persist writes docs. Every record is attempted; a failed record is
// logged and skipped. It reports whether every relational write succeeded.
func (s *Store) Persist(ctx context.Context, docs ...Document) bool {
	if s.backup != nil {
		if err := s.backup.Merge(docs...); err != nil {
			metrics.BackupWrites.WithLabelValues("failure").Inc()
			s.log.Error("Failed to write JSON backup", "path", s.backup.Path(), "error", err)
		} else {
			metrics.BackupWrites.WithLabelValues("success").Inc()
		}
	}

	ok := true
	for _, doc := range docs {
		if !s.persistDocument(ctx, doc) {
			ok = false
		}
	}
	return ok
}

func (s *Store) persistDocument(ctx context.Context, doc Document) bool {
	db := s.db.WithContext(ctx)

	fileID, err := s.upsertCase(db, doc)
	if err != nil {
		s.record("files", err)
		s.log.Error("Failed to persist case", "case", doc.CaseNumber, "error", err)
		return false
	}

	ok := true
	if doc.Detail != nil {
		err := s.upsertDetail(db, fileID, *doc.Detail)
		s.record("file_details", err)
		if err != nil {
			s.log.Error("Failed to persist case details", "case", doc.CaseNumber, "error", err)
			ok = false
		}
	}

	for _, b := range doc.Debtors {
		_, err := s.upsertDebtor(db, fileID, b)
		s.record("borclular", err)
		if err != nil {
			s.log.Error("Failed to persist debtor", "case", doc.CaseNumber, "debtor", b.Ad, "error", err)
			ok = false
		}
	}

	for _, party := range doc.Parties {
		name := PartyName(party.Label)
		borcluID, err := s.upsertDebtor(db, fileID, database.Borclu{Ad: name})
		s.record("borclular", err)
		if err != nil {
			s.log.Error("Failed to persist party", "case", doc.CaseNumber, "party", party.Label, "error", err)
			ok = false
			continue
		}

		for _, rec := range party.Results {
			err := s.upsertResult(db, borcluID, rec)
			s.record("borclu_sorgular", err)
			if err != nil {
				s.log.Error("Failed to persist query result",
					"case", doc.CaseNumber,
					"party", party.Label,
					"query", rec.Type,
					"error", err,
				)
				ok = false
				continue
			}

			if rec.Type == IdentityQuery && rec.Status != "failed" {
				if err := s.backfillIdentity(db, fileID, name, rec.Payload); err != nil {
					s.log.Warn("Identity backfill failed", "case", doc.CaseNumber, "party", party.Label, "error", err)
				}
			}
		}
	}

	return ok
}

// upsertCase updates the case matching the document's natural key, or
// inserts it. A document without case metadata attaches to the case
// already stored under its number when there is one.
func (s *Store) upsertCase(db *gorm.DB, doc Document) (string, error) {
	var file database.File
	if doc.Case != nil {
		file = *doc.Case
	}
	if file.DosyaNo == "" {
		file.DosyaNo = doc.CaseNumber
	}
	if file.IcraMudurlugu == "" {
		file.IcraMudurlugu = doc.Office
	}
	if file.DosyaNo == "" {
		return "", errors.New("case number missing")
	}
	file.Detail = nil
	file.Borclular = nil

	var existing database.File
	q := db.Where("dosyaNo = ?", file.DosyaNo)
	if file.IcraMudurlugu != "" || doc.Case != nil {
		q = q.Where("icraMudurlugu = ?", file.IcraMudurlugu)
	}
	err := q.Take(&existing).Error
	switch {
	case err == nil:
		if doc.Case == nil {
			return existing.FileID, nil
		}
		file.FileID = existing.FileID
		if err := db.Model(&database.File{FileID: existing.FileID}).Updates(file).Error; err != nil {
			return "", fmt.Errorf("failed to update case: %w", err)
		}
		return existing.FileID, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return "", fmt.Errorf("failed to look up case: %w", err)
	}

	file.FileID = FileID(file.DosyaNo, file.IcraMudurlugu)
	if err := db.Omit(clause.Associations).Create(&file).Error; err != nil {
		if !isConflict(err) {
			return "", fmt.Errorf("failed to insert case: %w", err)
		}
		s.log.Warn("Case already stored", "case", file.DosyaNo, "file_id", file.FileID, "error", err)
	}
	return file.FileID, nil
}

func (s *Store) upsertDetail(db *gorm.DB, fileID string, detail database.FileDetail) error {
	detail.FileID = fileID
	return upsertNonEmpty(db, &detail, []string{"file_id"}, map[string]string{
		"takipSekli":     detail.TakipSekli,
		"takipYolu":      detail.TakipYolu,
		"takipTuru":      detail.TakipTuru,
		"alacakliVekili": detail.AlacakliVekili,
		"borcMiktari":    detail.BorcMiktari,
		"faizOrani":      detail.FaizOrani,
		"guncelBorc":     detail.GuncelBorc,
		"sonOdeme":       detail.SonOdeme,
	})
}

// upsertDebtor inserts the debtor or fills in the fields the new record
// carries, keeping stored values for the ones it leaves empty.
func (s *Store) upsertDebtor(db *gorm.DB, fileID string, b database.Borclu) (string, error) {
	b.Ad = normalizeName(b.Ad)
	if b.Ad == "" {
		return "", errors.New("debtor name missing")
	}
	b.FileID = fileID
	b.BorcluID = BorcluID(fileID, b.Ad)
	b.Sorgular = nil

	err := upsertNonEmpty(db, &b, []string{"borclu_id"}, map[string]string{
		"tcKimlik": b.TCKimlik,
		"telefon":  b.Telefon,
		"adres":    b.Adres,
		"vekil":    b.Vekil,
	})
	return b.BorcluID, err
}

// upsertResult replaces the stored payload for (debtor, query type).
func (s *Store) upsertResult(db *gorm.DB, borcluID string, rec Record) error {
	data, err := json.Marshal(rec.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}
	row := database.BorcluSorgu{
		BorcluID:    borcluID,
		SorguTipi:   rec.Type,
		SorguVerisi: string(data),
		Timestamp:   s.now(),
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "borclu_id"}, {Name: "sorgu_tipi"}},
		DoUpdates: clause.AssignmentColumns([]string{"sorgu_verisi", "timestamp"}),
	}).Create(&row).Error
}

// backfillIdentity copies the national id and address out of an identity
// payload onto the case's debtors whose name contains name.
func (s *Store) backfillIdentity(db *gorm.DB, fileID, name string, payload any) error {
	text, ok := payload.(string)
	if !ok {
		return nil
	}
	id := ParseIdentity(text)
	if id.empty() {
		return nil
	}

	updates := map[string]any{}
	if id.TCKimlik != "" {
		updates["tcKimlik"] = id.TCKimlik
	}
	if id.Adres != "" {
		updates["adres"] = id.Adres
	}

	res := db.Model(&database.Borclu{}).
		Where("file_id = ? AND ad LIKE ?", fileID, "%"+name+"%").
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	s.log.Info("Debtor identity backfilled", "file_id", fileID, "name", name, "rows", res.RowsAffected)
	return nil
}

// LogRun appends an audit entry. Failures are logged only.
func (s *Store) LogRun(ctx context.Context, entry database.QueryLog) {
	if entry.QueryTime.IsZero() {
		entry.QueryTime = s.now()
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		s.log.Warn("Failed to write query log", "operation", entry.Operation, "error", err)
	}
}

func (s *Store) record(table string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	metrics.PersistedRows.WithLabelValues(table, result).Inc()
}

// upsertNonEmpty inserts value, or on a key conflict updates only the
// columns whose new value is non-empty.
func upsertNonEmpty(db *gorm.DB, value any, key []string, fields map[string]string) error {
	var columns []string
	for col, v := range fields {
		if v != "" {
			columns = append(columns, col)
		}
	}
	sort.Strings(columns)

	conflict := clause.OnConflict{Columns: make([]clause.Column, 0, len(key))}
	for _, k := range key {
		conflict.Columns = append(conflict.Columns, clause.Column{Name: k})
	}
	if len(columns) == 0 {
		conflict.DoNothing = true
	} else {
		conflict.DoUpdates = clause.AssignmentColumns(columns)
	}
	return db.Omit(clause.Associations).Clauses(conflict).Create(value).Error
}

func isConflict(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "PRIMARY KEY")
}
