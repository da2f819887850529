package storage_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/factura-importer/internal/archive"
	"github.com/rezonia/factura-importer/internal/model"
	"github.com/rezonia/factura-importer/internal/storage"
)

func rec(number, supplier string) *model.Record {
	return &model.Record{
		IssueDate:     time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		SupplierName:  supplier,
		InvoiceNumber: number,
	}
}

func TestSafeName(t *testing.T) {
	assert.Equal(t, "Acme SAS", storage.SafeName("Acme, SAS"))
	assert.Equal(t, "Distribuidora Andina SAS", storage.SafeName("Distribuidora Andina S.A.S."))
	assert.Equal(t, "Panadería Ñandú", storage.SafeName(" Panadería Ñandú? "))
	assert.Equal(t, "a-b_c", storage.SafeName("a-b_c"))
	assert.Empty(t, storage.SafeName("../"))
}

func TestBaseName(t *testing.T) {
	assert.Equal(t, "2026-03-01 Acme SAS", storage.BaseName(rec("FE-1", "Acme SAS")))
	assert.Equal(t, "2026-03-01 proveedor", storage.BaseName(rec("FE-1", "...")))
}

func TestSave_XMLAndPDF(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	f := storage.NewFiles(dir, nil)

	files, err := f.Save(rec("FE-1", "Acme SAS"), &archive.Bundle{XML: []byte("<Invoice/>"), PDF: []byte("%PDF-1.4")})
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-03-01 Acme SAS.xml", "2026-03-01 Acme SAS.pdf"}, files)

	data, err := os.ReadFile(filepath.Join(dir, files[1]))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))
}

func TestSave_ExistingFileKept(t *testing.T) {
	dir := t.TempDir()
	f := storage.NewFiles(dir, nil)
	bundle := &archive.Bundle{XML: []byte("<Invoice>1</Invoice>")}

	first, err := f.Save(rec("FE-1", "Acme SAS"), bundle)
	require.NoError(t, err)
	again, err := f.Save(rec("FE-1", "Acme SAS"), bundle)
	require.NoError(t, err)
	assert.Equal(t, first, again)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSave_SameDaySameSupplier(t *testing.T) {
	dir := t.TempDir()
	f := storage.NewFiles(dir, nil)

	_, err := f.Save(rec("FE-1", "Acme SAS"), &archive.Bundle{XML: []byte("<Invoice>1</Invoice>")})
	require.NoError(t, err)
	files, err := f.Save(rec("FE-2", "Acme SAS"), &archive.Bundle{XML: []byte("<Invoice>2</Invoice>")})
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-03-01 Acme SAS FE-2.xml"}, files)

	data, err := os.ReadFile(filepath.Join(dir, "2026-03-01 Acme SAS.xml"))
	require.NoError(t, err)
	assert.Equal(t, "<Invoice>1</Invoice>", string(data), "the first file is never overwritten")
}

func TestSave_NothingToSave(t *testing.T) {
	f := storage.NewFiles(t.TempDir(), nil)
	files, err := f.Save(rec("FE-1", "Acme"), nil)
	require.NoError(t, err)
	assert.Nil(t, files)
}
