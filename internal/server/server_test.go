package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/rezonia/factura-importer/internal/mail"
	"github.com/rezonia/factura-importer/internal/model"
	"github.com/rezonia/factura-importer/internal/server"
	"github.com/rezonia/factura-importer/internal/store"
)

func invoiceXML(number, supplier, date, total string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<Invoice xmlns:cac="urn:cac" xmlns:cbc="urn:cbc">
	<cbc:ID>%s</cbc:ID>
	<cbc:IssueDate>%s</cbc:IssueDate>
	<cac:AccountingSupplierParty><cac:Party><cac:PartyTaxScheme>
		<cbc:RegistrationName>%s</cbc:RegistrationName>
		<cbc:CompanyID>900123456</cbc:CompanyID>
	</cac:PartyTaxScheme></cac:Party></cac:AccountingSupplierParty>
	<cac:TaxTotal><cbc:TaxAmount>19.00</cbc:TaxAmount></cac:TaxTotal>
	<cac:LegalMonetaryTotal>
		<cbc:LineExtensionAmount>100.00</cbc:LineExtensionAmount>
		<cbc:PayableAmount>%s</cbc:PayableAmount>
	</cac:LegalMonetaryTotal>
</Invoice>`, number, date, supplier, total)
}

type fixture struct {
	srv    *server.Server
	store  *store.GormStore
	inbox  string
	outbox string
}

func newFixture(t *testing.T, opts ...server.Option) *fixture {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	st, err := store.New(db, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	f := &fixture{store: st, inbox: t.TempDir(), outbox: t.TempDir()}
	cfg := &server.Config{Address: ":0", TargetDirectory: f.inbox, OutputDirectory: f.outbox}
	opts = append(opts, server.WithClock(func() time.Time { return time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC) }))
	f.srv = server.NewServer(cfg, st, opts...)
	return f
}

func (f *fixture) write(t *testing.T, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(f.inbox, name), []byte(content), 0o644))
}

func (f *fixture) do(method, target string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		_ = json.NewEncoder(&buf).Encode(b)
	}
	req := httptest.NewRequest(method, target, &buf)
	w := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func TestHealthEndpoint(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	decode(t, w, &response)
	assert.Equal(t, "ok", response["status"])
	assert.NotEmpty(t, response["time"])
}

func TestProcessXMLEndpoint(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/api/v1/process/xml?filename=fe-1.xml", invoiceXML("FE-1", "Acme SAS", "2026-03-01", "119.00"))
	require.Equal(t, http.StatusOK, w.Code)

	var response server.ProcessResponse
	decode(t, w, &response)
	assert.Equal(t, "xml", response.Format)
	require.NotNil(t, response.Record)
	assert.Equal(t, "FE-1", response.Record.InvoiceNumber)
	assert.Equal(t, "fe-1.xml", response.Record.SourceFilename)
	assert.Empty(t, response.Warnings)

	w = f.do(http.MethodPost, "/api/v1/process/xml", "<Order/>")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var failure server.ErrorResponse
	decode(t, w, &failure)
	assert.Equal(t, model.ReasonNotAnInvoiceDocument, failure.Reason)

	w = f.do(http.MethodPost, "/api/v1/process/xml", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestValidateAndInfoEndpoints(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/api/v1/validate", invoiceXML("FE-1", "Acme SAS", "2026-03-01", "500.00"))
	require.Equal(t, http.StatusOK, w.Code)
	var v server.ValidationResponse
	decode(t, w, &v)
	assert.True(t, v.Valid)
	assert.Len(t, v.Warnings, 1, "totals do not add up")

	w = f.do(http.MethodPost, "/api/v1/validate", "<Invoice><ID>")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	decode(t, w, &v)
	assert.Equal(t, model.ReasonMalformedXML, v.Reason)

	w = f.do(http.MethodPost, "/api/v1/info", invoiceXML("FE-1", "Acme SAS", "2026-03-01", "119.00"))
	require.Equal(t, http.StatusOK, w.Code)
	var info map[string]interface{}
	decode(t, w, &info)
	assert.Equal(t, "Invoice", info["root"])
}

func TestImportThenQuery(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.xml", invoiceXML("FE-1", "Acme SAS", "2026-03-01", "119.00"))
	f.write(t, "b.xml", invoiceXML("FE-2", "Beta SAS", "2026-03-05", "119.00"))
	f.write(t, "c.xml", "<Invoice><ID>")

	w := f.do(http.MethodPost, "/api/v1/invoices/import-db", server.ImportRequest{DryRun: true})
	require.Equal(t, http.StatusOK, w.Code)
	var preview server.BatchResponse
	decode(t, w, &preview)
	assert.True(t, preview.DryRun)
	assert.Equal(t, 2, preview.Stats.Successful)

	w = f.do(http.MethodGet, "/api/v1/invoices", nil)
	var empty server.ListResponse
	decode(t, w, &empty)
	assert.Zero(t, empty.Count, "a dry run writes nothing")

	w = f.do(http.MethodPost, "/api/v1/invoices/import-db", "")
	require.Equal(t, http.StatusOK, w.Code)
	var run server.BatchResponse
	decode(t, w, &run)
	assert.Equal(t, 3, run.Stats.Scanned)
	assert.Equal(t, 2, run.Stats.Successful)
	assert.Equal(t, 1, run.Stats.Errors)
	assert.Len(t, run.Results, 3)

	w = f.do(http.MethodPost, "/api/v1/invoices/import-db", server.ImportRequest{})
	decode(t, w, &run)
	assert.Equal(t, 2, run.Stats.Duplicate)

	w = f.do(http.MethodGet, "/api/v1/invoices?provider=Beta%20SAS", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list server.ListResponse
	decode(t, w, &list)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "FE-2", list.Invoices[0].InvoiceNumber)

	w = f.do(http.MethodGet, "/api/v1/invoices/providers?start_date=2026-03-02", nil)
	var providers struct {
		Providers []string `json:"providers"`
	}
	decode(t, w, &providers)
	assert.Equal(t, []string{"Beta SAS"}, providers.Providers)

	w = f.do(http.MethodGet, "/api/v1/invoices/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var sum store.Summary
	decode(t, w, &sum)
	assert.EqualValues(t, 2, sum.Invoices)
	assert.Equal(t, "238", sum.Total.String())
}

func TestImport_BadInput(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/api/v1/invoices/import-db", server.ImportRequest{TargetDirectory: filepath.Join(f.inbox, "missing")})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodPost, "/api/v1/invoices/import-db", server.ImportRequest{FilterFields: server.FilterFields{StartDate: "01/03/2026"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodGet, "/api/v1/invoices?start_date=2026-03-05&end_date=2026-03-01", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodPost, "/api/v1/invoices/import-db", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportEndpoint(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/api/v1/invoices/export-db", server.ExportRequest{Formats: []string{"csv"}})
	require.Equal(t, http.StatusOK, w.Code)
	var resp server.ExportResponse
	decode(t, w, &resp)
	assert.Equal(t, "warning", resp.Status)

	f.write(t, "a.xml", invoiceXML("FE-1", "Acme SAS", "2026-03-01", "119.00"))
	f.do(http.MethodPost, "/api/v1/invoices/import-db", nil)

	w = f.do(http.MethodPost, "/api/v1/invoices/export-db", server.ExportRequest{Formats: []string{"csv", "excel"}})
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &resp)
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, 1, resp.Count)
	require.Len(t, resp.Files, 2)
	assert.FileExists(t, filepath.Join(f.outbox, "2026-04-02 facturas_export.csv"))

	w = f.do(http.MethodPost, "/api/v1/invoices/export-db", server.ExportRequest{Formats: []string{"docx"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type emptyMailbox struct {
	listed bool
}

func (m *emptyMailbox) EnsureLabel(context.Context, string) (string, error) { return "L1", nil }
func (m *emptyMailbox) ListUnprocessed(context.Context, string) ([]string, error) {
	m.listed = true
	return nil, nil
}
func (m *emptyMailbox) Metadata(context.Context, string) (*mail.Message, error) {
	return nil, errors.New("unused")
}
func (m *emptyMailbox) Attachments(context.Context, string) ([]mail.Attachment, error) {
	return nil, nil
}
func (m *emptyMailbox) ThreadMessages(context.Context, string) ([]*mail.Message, error) {
	return nil, nil
}
func (m *emptyMailbox) Download(context.Context, string, string) ([]byte, error) { return nil, nil }
func (m *emptyMailbox) MarkProcessed(context.Context, string, string) error    { return nil }
func (m *emptyMailbox) Trash(context.Context, string) error                    { return nil }

func TestMailEndpoint(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodPost, "/api/v1/invoices/process", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	f = newFixture(t, server.WithMail(func(context.Context) (mail.Source, error) {
		return nil, errors.New("token expired")
	}, mail.Options{}))
	w = f.do(http.MethodPost, "/api/v1/invoices/process", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	box := &emptyMailbox{}
	f = newFixture(t, server.WithMail(func(context.Context) (mail.Source, error) { return box, nil }, mail.Options{}))
	w = f.do(http.MethodPost, "/api/v1/invoices/process", map[string]interface{}{"max_emails": 5, "dry_run": true})
	require.Equal(t, http.StatusOK, w.Code)
	var resp server.BatchResponse
	decode(t, w, &resp)
	assert.True(t, box.listed)
	assert.Zero(t, resp.Stats.Scanned)
}
