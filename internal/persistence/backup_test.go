package persistence

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JustJay7/uyap-extractor/internal/database"
)

func TestBackupMergeKeepsEarlierEntries(t *testing.T) {
	b := NewBackup(filepath.Join(t.TempDir(), "data", "backup.json"))

	require.NoError(t, b.Merge(Document{
		CaseNumber: "2024/141",
		Parties:    []Party{{Label: "AHMET YILMAZ", Results: []Record{{Type: "GSM", Payload: "Kayıt yok"}}}},
	}))
	require.NoError(t, b.Merge(Document{
		CaseNumber: "2024/141",
		Parties: []Party{
			{Label: "AHMET YILMAZ", Results: []Record{{Type: "BANKA", Payload: []any{}}}},
			{Label: "AYŞE KAYA", Results: []Record{{Type: "GSM", Payload: "Kayıt yok"}}},
		},
	}, Document{
		CaseNumber: "2023/88",
		Case:       &database.File{DosyaNo: "2023/88", Durum: "Açık"},
	}))

	tree, err := b.Load()
	require.NoError(t, err)

	ahmet := tree["2024/141"]["AHMET YILMAZ"].(map[string]any)
	assert.Equal(t, "Kayıt yok", ahmet["GSM"])
	assert.Equal(t, []any{}, ahmet["BANKA"])
	assert.Contains(t, tree["2024/141"], "AYŞE KAYA")

	meta := tree["2023/88"][CaseMetaKey].(map[string]any)
	assert.Equal(t, "Açık", meta["dosya"].(map[string]any)["durum"])
}

func TestBackupLoadMissingFile(t *testing.T) {
	tree, err := NewBackup(filepath.Join(t.TempDir(), "yok.json")).Load()
	require.NoError(t, err)
	assert.Empty(t, tree)
}

func TestBackupRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backup.json")
	require.NoError(t, os.WriteFile(path, []byte("{bozuk"), 0644))

	err := NewBackup(path).Merge(Document{CaseNumber: "2024/141"})
	assert.Error(t, err)

	data, _ := os.ReadFile(path)
	assert.Equal(t, "{bozuk", string(data))
}
