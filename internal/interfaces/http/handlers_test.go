package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/invoice-desk/internal/archive"
	"github.com/garyjia/invoice-desk/internal/builder"
	"github.com/garyjia/invoice-desk/internal/domain/entity"
	"github.com/garyjia/invoice-desk/internal/export"
	"github.com/garyjia/invoice-desk/internal/gate"
	"github.com/garyjia/invoice-desk/internal/kvstore"
	"github.com/garyjia/invoice-desk/internal/render"
	"github.com/garyjia/invoice-desk/internal/storage"
	"github.com/garyjia/invoice-desk/pkg/database"
)

var fixedNow = time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	router    *gin.Engine
	local     *kvstore.SQLiteStore
	exportDir string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	dir := t.TempDir()

	db, err := database.New(database.Config{Path: filepath.Join(dir, "desk.db")}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.NewMigrator(db, logger).Run())

	local := kvstore.NewSQLiteStore(db, kvstore.LocalNamespace, logger)
	store := archive.NewStore(local, logger)
	cfg := render.DefaultConfig()
	renderer := render.NewRenderer(cfg)
	capturer := render.NewCapturer(1)
	exportDir := filepath.Join(dir, "exports")

	server := NewServer(DefaultServerConfig(), Dependencies{
		Gate:     gate.New(local, logger, gate.WithDelay(0)),
		Sessions: kvstore.NewSessions(time.Hour),
		Builder:  builder.New(store, logger, builder.WithClock(func() time.Time { return fixedNow })),
		Archive:  store,
		Renderer: renderer,
		Capturer: capturer,
		Printer:  render.NewPDFPrinter(),
		Exporter: export.NewExporter(cfg.Brand, renderer, capturer,
			storage.NewLocalFileStorage(exportDir, logger), 0, logger),
	}, logger)

	return &testEnv{router: server.Router(), local: local, exportDir: exportDir}
}

type testClient struct {
	t      *testing.T
	router *gin.Engine
	cookie *http.Cookie
}

func (e *testEnv) client(t *testing.T) *testClient {
	return &testClient{t: t, router: e.router}
}

func (tc *testClient) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	tc.t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(tc.t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tc.cookie != nil {
		req.AddCookie(tc.cookie)
	}

	w := httptest.NewRecorder()
	tc.router.ServeHTTP(w, req)

	for _, ck := range w.Result().Cookies() {
		if ck.Name == SessionCookie && ck.Value != "" {
			tc.cookie = ck
		}
	}
	return w
}

func (tc *testClient) unlock() {
	tc.t.Helper()
	w := tc.do(http.MethodPost, "/api/v1/session/unlock", UnlockRequest{Code: "1337"})
	require.Equal(tc.t, http.StatusOK, w.Code)
}

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Notices []Notice        `json:"notices"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data interface{}) apiResponse {
	t.Helper()
	var resp apiResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	if data != nil {
		require.NoError(t, json.Unmarshal(resp.Data, data))
	}
	return resp
}

func validDraft() map[string]interface{} {
	return map[string]interface{}{
		"date":          "2024-05-01",
		"customerName":  "Rahima Akter",
		"customerPhone": "01700000000",
		"discountType":  "percentage",
		"discountValue": 10,
		"items": []map[string]interface{}{
			{"description": "Gold plated necklace", "quantity": 2, "price": 1250},
		},
	}
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t)
	w := env.client(t).do(http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var health HealthResponse
	resp := decode(t, w, &health)
	assert.True(t, resp.Success)
	assert.Equal(t, "healthy", health.Status)
}

func TestSession_Gate(t *testing.T) {
	env := newTestEnv(t)

	t.Run("locked endpoints need the code", func(t *testing.T) {
		w := env.client(t).do(http.MethodGet, "/api/v1/draft", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("wrong code reports remaining attempts", func(t *testing.T) {
		tc := env.client(t)
		w := tc.do(http.MethodPost, "/api/v1/session/unlock", UnlockRequest{Code: "0000"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		var result gate.Result
		resp := decode(t, w, &result)
		assert.False(t, resp.Success)
		assert.Equal(t, entity.AccessRejected, result.Outcome)
		assert.Equal(t, 4, result.Remaining)
		assert.Equal(t, "Incorrect PIN. 4 attempts remaining.", resp.Error)
	})

	t.Run("correct code unlocks only this session", func(t *testing.T) {
		tc := env.client(t)
		tc.unlock()

		w := tc.do(http.MethodGet, "/api/v1/draft", nil)
		assert.Equal(t, http.StatusOK, w.Code)

		var status gate.Status
		decode(t, tc.do(http.MethodGet, "/api/v1/session", nil), &status)
		assert.True(t, status.Unlocked)
		assert.Equal(t, 0, status.FailureCount)

		other := env.client(t)
		assert.Equal(t, http.StatusUnauthorized, other.do(http.MethodGet, "/api/v1/draft", nil).Code)
	})

	t.Run("ending the session locks again", func(t *testing.T) {
		tc := env.client(t)
		tc.unlock()
		cookie := tc.cookie

		assert.Equal(t, http.StatusOK, tc.do(http.MethodDelete, "/api/v1/session", nil).Code)

		tc.cookie = cookie
		assert.Equal(t, http.StatusUnauthorized, tc.do(http.MethodGet, "/api/v1/draft", nil).Code)
	})
}

func TestSession_Lockout(t *testing.T) {
	env := newTestEnv(t)
	tc := env.client(t)

	for i := 0; i < gate.MaxAttempts-1; i++ {
		w := tc.do(http.MethodPost, "/api/v1/session/unlock", UnlockRequest{Code: "9999"})
		require.Equal(t, http.StatusUnauthorized, w.Code)
	}

	w := tc.do(http.MethodPost, "/api/v1/session/unlock", UnlockRequest{Code: "9999"})
	assert.Equal(t, http.StatusLocked, w.Code)
	var result gate.Result
	decode(t, w, &result)
	assert.Equal(t, entity.AccessLockedOut, result.Outcome)
	require.NotNil(t, result.LockoutUntil)

	w = tc.do(http.MethodPost, "/api/v1/session/unlock", UnlockRequest{Code: "1337"})
	assert.Equal(t, http.StatusLocked, w.Code)

	// the lockout is shared by every session
	w = env.client(t).do(http.MethodPost, "/api/v1/session/unlock", UnlockRequest{Code: "1337"})
	assert.Equal(t, http.StatusLocked, w.Code)
}

func TestDraft_Editing(t *testing.T) {
	env := newTestEnv(t)
	tc := env.client(t)
	tc.unlock()

	var draft DraftResponse
	decode(t, tc.do(http.MethodGet, "/api/v1/draft", nil), &draft)
	assert.Equal(t, "INV-400000", draft.Record.InvoiceNumber)
	assert.Equal(t, "2024-05-01", draft.Record.Date)
	require.Len(t, draft.Record.Items, 1)
	assert.False(t, draft.Valid)
	assert.Contains(t, draft.Violations, "customerName")

	t.Run("update header discount and items", func(t *testing.T) {
		w := tc.do(http.MethodPut, "/api/v1/draft", validDraft())
		require.Equal(t, http.StatusOK, w.Code)

		var updated DraftResponse
		decode(t, w, &updated)
		assert.True(t, updated.Valid)
		assert.Equal(t, "Rahima Akter", updated.Record.CustomerName)
		assert.InDelta(t, 2500, updated.Totals.Subtotal, 1e-9)
		assert.InDelta(t, 250, updated.Totals.DiscountAmount, 1e-9)
		assert.InDelta(t, 2250, updated.Totals.Total, 1e-9)
		assert.NotEmpty(t, updated.Record.Items[0].ID)
	})

	t.Run("percentage is clamped", func(t *testing.T) {
		body := validDraft()
		body["discountValue"] = 150
		var updated DraftResponse
		decode(t, tc.do(http.MethodPut, "/api/v1/draft", body), &updated)
		assert.Equal(t, 100.0, updated.Record.DiscountValue)
		assert.Equal(t, 0.0, updated.Totals.Total)
	})

	t.Run("bad date is rejected", func(t *testing.T) {
		body := validDraft()
		body["date"] = "01/05/2024"
		assert.Equal(t, http.StatusBadRequest, tc.do(http.MethodPut, "/api/v1/draft", body).Code)
	})

	t.Run("unknown discount type is rejected", func(t *testing.T) {
		body := validDraft()
		body["discountType"] = "coupon"
		assert.Equal(t, http.StatusBadRequest, tc.do(http.MethodPut, "/api/v1/draft", body).Code)
	})

	t.Run("items can be added updated and removed", func(t *testing.T) {
		w := tc.do(http.MethodPost, "/api/v1/draft/items", nil)
		require.Equal(t, http.StatusCreated, w.Code)
		var added ItemResponse
		decode(t, w, &added)
		assert.Equal(t, 1, added.Item.Quantity)
		assert.Len(t, added.Draft.Record.Items, 2)

		w = tc.do(http.MethodPut, "/api/v1/draft/items/"+added.Item.ID,
			entity.LineItem{Description: "Earrings", Quantity: 1, Price: 300})
		require.Equal(t, http.StatusOK, w.Code)
		var updated ItemResponse
		decode(t, w, &updated)
		assert.Equal(t, added.Item.ID, updated.Item.ID)
		assert.Equal(t, "Earrings", updated.Draft.Record.Items[1].Description)

		w = tc.do(http.MethodDelete, "/api/v1/draft/items/"+added.Item.ID, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var after DraftResponse
		decode(t, w, &after)
		require.Len(t, after.Record.Items, 1)

		assert.Equal(t, http.StatusConflict,
			tc.do(http.MethodDelete, "/api/v1/draft/items/"+after.Record.Items[0].ID, nil).Code)
		assert.Equal(t, http.StatusNotFound,
			tc.do(http.MethodDelete, "/api/v1/draft/items/missing", nil).Code)
	})

	t.Run("reset starts over", func(t *testing.T) {
		var reset DraftResponse
		decode(t, tc.do(http.MethodPost, "/api/v1/draft/reset", nil), &reset)
		assert.Empty(t, reset.Record.CustomerName)
		assert.Equal(t, "INV-400000", reset.Record.InvoiceNumber)
	})
}

func TestDraft_Renderings(t *testing.T) {
	env := newTestEnv(t)
	tc := env.client(t)
	tc.unlock()
	require.Equal(t, http.StatusOK, tc.do(http.MethodPut, "/api/v1/draft", validDraft()).Code)

	w := tc.do(http.MethodGet, "/api/v1/draft/preview.png", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")))

	w = tc.do(http.MethodGet, "/api/v1/draft/print.pdf", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")))
}

func TestExport_Flow(t *testing.T) {
	env := newTestEnv(t)
	tc := env.client(t)
	tc.unlock()

	t.Run("invalid draft is not exported", func(t *testing.T) {
		w := tc.do(http.MethodPost, "/api/v1/draft/export", nil)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

		var draft DraftResponse
		resp := decode(t, w, &draft)
		assert.Empty(t, resp.Notices)
		assert.Contains(t, draft.Violations, "customerName")

		var list InvoicesResponse
		decode(t, tc.do(http.MethodGet, "/api/v1/invoices", nil), &list)
		assert.Empty(t, list.Invoices)
	})

	require.Equal(t, http.StatusOK, tc.do(http.MethodPut, "/api/v1/draft", validDraft()).Code)

	w := tc.do(http.MethodPost, "/api/v1/draft/export", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var exported ExportResponse
	resp := decode(t, w, &exported)
	assert.True(t, resp.Success)
	assert.True(t, exported.Saved)
	assert.Equal(t, "G-Te-Goyna-Invoice-INV-400000.png", exported.FileName)
	assert.Equal(t, "INV-400000", exported.Invoice.InvoiceNumber)
	assert.True(t, bytes.HasPrefix(exported.Content, []byte("\x89PNG")))
	assert.Equal(t, "INV-400001", exported.Draft.Record.InvoiceNumber)
	assert.Empty(t, exported.Draft.Record.CustomerName)

	onDisk, err := os.ReadFile(filepath.Join(env.exportDir, exported.FileName))
	require.NoError(t, err)
	assert.Equal(t, exported.Content, onDisk)

	var list InvoicesResponse
	decode(t, tc.do(http.MethodGet, "/api/v1/invoices", nil), &list)
	require.Len(t, list.Invoices, 1)
	assert.Equal(t, "INV-400000", list.Invoices[0].InvoiceNumber)
	assert.InDelta(t, 2250, list.Invoices[0].Total, 1e-9)

	w = tc.do(http.MethodGet, "/api/v1/invoices/export.xlsx", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, export.WorkbookContentType, w.Header().Get("Content-Type"))
	assert.NotZero(t, w.Body.Len())

	t.Run("saved invoice loads back into the form", func(t *testing.T) {
		w := tc.do(http.MethodPost, "/api/v1/invoices/INV-400000/load", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var draft DraftResponse
		decode(t, w, &draft)
		assert.Equal(t, "INV-400000", draft.Record.InvoiceNumber)
		assert.Equal(t, "Rahima Akter", draft.Record.CustomerName)

		assert.Equal(t, http.StatusNotFound,
			tc.do(http.MethodPost, "/api/v1/invoices/INV-9999/load", nil).Code)
	})

	t.Run("delete and clear", func(t *testing.T) {
		w := tc.do(http.MethodDelete, "/api/v1/invoices/INV-400000", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, http.StatusNotFound, tc.do(http.MethodDelete, "/api/v1/invoices/INV-400000", nil).Code)

		assert.Equal(t, http.StatusOK, tc.do(http.MethodDelete, "/api/v1/invoices", nil).Code)
		decode(t, tc.do(http.MethodGet, "/api/v1/invoices", nil), &list)
		assert.Empty(t, list.Invoices)
	})
}

func TestSaveDraft(t *testing.T) {
	env := newTestEnv(t)
	tc := env.client(t)
	tc.unlock()

	assert.Equal(t, http.StatusUnprocessableEntity, tc.do(http.MethodPost, "/api/v1/draft/save", nil).Code)

	require.Equal(t, http.StatusOK, tc.do(http.MethodPut, "/api/v1/draft", validDraft()).Code)
	w := tc.do(http.MethodPost, "/api/v1/draft/save", nil)
	require.Equal(t, http.StatusOK, w.Code)

	raw, ok, err := env.local.Get(archive.Key)
	require.NoError(t, err)
	require.True(t, ok)
	var records []entity.InvoiceRecord
	require.NoError(t, json.Unmarshal([]byte(raw), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "Rahima Akter", records[0].CustomerName)
}

func TestCorruptedArchive(t *testing.T) {
	env := newTestEnv(t)
	tc := env.client(t)
	tc.unlock()
	require.NoError(t, env.local.Set(archive.Key, "{not json"))

	t.Run("listing degrades to empty with a warning", func(t *testing.T) {
		w := tc.do(http.MethodGet, "/api/v1/invoices", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var list InvoicesResponse
		resp := decode(t, w, &list)
		assert.Empty(t, list.Invoices)
		require.Len(t, resp.Notices, 1)
		assert.Equal(t, NoticeWarning, resp.Notices[0].Level)
	})

	t.Run("export still delivers the image but does not save", func(t *testing.T) {
		require.Equal(t, http.StatusOK, tc.do(http.MethodPut, "/api/v1/draft", validDraft()).Code)

		w := tc.do(http.MethodPost, "/api/v1/draft/export", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var exported ExportResponse
		resp := decode(t, w, &exported)
		assert.False(t, exported.Saved)
		assert.NotEmpty(t, exported.Content)
		require.Len(t, resp.Notices, 1)
		assert.Equal(t, NoticeError, resp.Notices[0].Level)
		assert.Equal(t, "Rahima Akter", exported.Draft.Record.CustomerName)

		raw, _, err := env.local.Get(archive.Key)
		require.NoError(t, err)
		assert.Equal(t, "{not json", raw)
	})

	t.Run("clearing recovers", func(t *testing.T) {
		require.Equal(t, http.StatusOK, tc.do(http.MethodDelete, "/api/v1/invoices", nil).Code)
		resp := decode(t, tc.do(http.MethodGet, "/api/v1/invoices", nil), nil)
		assert.Empty(t, resp.Notices)
	})
}
