package database

import (
	"time"
)

// File is an enforcement case (icra dosyası). (DosyaNo, IcraMudurlugu) is
// the natural key; FileID is derived from it.
type File struct {
	FileID        string `json:"file_id" gorm:"column:file_id;primaryKey"`
	Klasor        string `json:"klasor" gorm:"column:klasor"`
	DosyaNo       string `json:"dosyaNo" gorm:"column:dosyaNo;uniqueIndex:idx_files_natural_key"`
	EYil          string `json:"eYil" gorm:"column:eYil"`
	ENo           string `json:"eNo" gorm:"column:eNo"`
	BorcluAdi     string `json:"borcluAdi" gorm:"column:borcluAdi"`
	AlacakliAdi   string `json:"alacakliAdi" gorm:"column:alacakliAdi"`
	FoyTuru       string `json:"foyTuru" gorm:"column:foyTuru"`
	Durum         string `json:"durum" gorm:"column:durum"`
	TakipTarihi   string `json:"takipTarihi" gorm:"column:takipTarihi"`
	IcraMudurlugu string `json:"icraMudurlugu" gorm:"column:icraMudurlugu;uniqueIndex:idx_files_natural_key"`

	Detail    *FileDetail `json:"detail,omitempty" gorm:"foreignKey:FileID;references:FileID"`
	Borclular []Borclu    `json:"borclular,omitempty" gorm:"foreignKey:FileID;references:FileID"`
}

// FileDetail holds a case's financials, 1:1 with File.
type FileDetail struct {
	FileID         string `json:"file_id" gorm:"column:file_id;primaryKey"`
	TakipSekli     string `json:"takipSekli" gorm:"column:takipSekli"`
	TakipYolu      string `json:"takipYolu" gorm:"column:takipYolu"`
	TakipTuru      string `json:"takipTuru" gorm:"column:takipTuru"`
	AlacakliVekili string `json:"alacakliVekili" gorm:"column:alacakliVekili"`
	BorcMiktari    string `json:"borcMiktari" gorm:"column:borcMiktari"`
	FaizOrani      string `json:"faizOrani" gorm:"column:faizOrani"`
	GuncelBorc     string `json:"guncelBorc" gorm:"column:guncelBorc"`
	SonOdeme       string `json:"sonOdeme" gorm:"column:sonOdeme"`
}

// Borclu is a debtor named on a case.
type Borclu struct {
	BorcluID string `json:"borclu_id" gorm:"column:borclu_id;primaryKey"`
	FileID   string `json:"file_id" gorm:"column:file_id;index"`
	Ad       string `json:"ad" gorm:"column:ad"`
	TCKimlik string `json:"tcKimlik" gorm:"column:tcKimlik"`
	Telefon  string `json:"telefon" gorm:"column:telefon"`
	Adres    string `json:"adres" gorm:"column:adres"`
	Vekil    string `json:"vekil" gorm:"column:vekil"`

	Sorgular []BorcluSorgu `json:"sorgular,omitempty" gorm:"foreignKey:BorcluID;references:BorcluID"`
}

// BorcluSorgu is the latest result of one query type for one debtor.
// SorguVerisi holds the payload as JSON.
type BorcluSorgu struct {
	BorcluID    string    `json:"borclu_id" gorm:"column:borclu_id;primaryKey"`
	SorguTipi   string    `json:"sorgu_tipi" gorm:"column:sorgu_tipi;primaryKey"`
	SorguVerisi string    `json:"sorgu_verisi" gorm:"column:sorgu_verisi;type:text"`
	Timestamp   time.Time `json:"timestamp" gorm:"column:timestamp"`
}

// QueryLog records one portal run (query or extraction) for auditing.
type QueryLog struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Operation    string    `json:"operation"`
	CaseNumber   string    `json:"case_number"`
	Success      bool      `json:"success"`
	ErrorMessage string    `json:"error_message"`
	Results      int       `json:"results"`
	QueryTime    time.Time `json:"query_time"`
}

func (File) TableName() string {
	return "files"
}

func (FileDetail) TableName() string {
	return "file_details"
}

func (Borclu) TableName() string {
	return "borclular"
}

func (BorcluSorgu) TableName() string {
	return "borclu_sorgular"
}

func (QueryLog) TableName() string {
	return "query_logs"
}
