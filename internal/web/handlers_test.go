package web

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/keepsake/internal/capsule"
	"github.com/hpungsan/keepsake/internal/config"
	"github.com/hpungsan/keepsake/internal/ops"
	"github.com/hpungsan/keepsake/internal/store"
)

func setupTest(t *testing.T) (http.Handler, *store.Store) {
	t.Helper()
	st := store.New()
	return NewHandler(st, config.DefaultConfig(), prometheus.NewRegistry(), zerolog.Nop(), "test"), st
}

func do(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
	return v
}

type errorBody struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Status  int            `json:"status"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[errorBody](t, rec).Error.Code
}

// seed creates contributor 1 with capsule 1 through the API.
func seed(t *testing.T, h http.Handler) {
	t.Helper()
	rec := do(t, h, "POST", "/contributors", map[string]any{"name": "Ada", "email": "ada@x.com"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = do(t, h, "POST", "/capsules", map[string]any{
		"name": "Summer", "description": "**beach** week", "contributor_id": 1, "time_open": "2030-07-01T00:00:00Z",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestErrorPayloads_Golden(t *testing.T) {
	h, _ := setupTest(t)
	seed(t, h)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)

	rec := do(t, h, "GET", "/capsules/99", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	g.Assert(t, "capsule_not_found", rec.Body.Bytes())

	rec = do(t, h, "PATCH", "/capsules/1?etag=99", map[string]any{"name": "Winter"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	g.Assert(t, "capsule_stale_version", rec.Body.Bytes())
}

func TestCapsuleLifecycle(t *testing.T) {
	h, st := setupTest(t)
	seed(t, h)

	rec := do(t, h, "GET", "/capsules/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `"1"`, rec.Header().Get("ETag"))
	c := decode[capsule.Capsule](t, rec)
	assert.Equal(t, "Summer", c.Name)
	assert.Equal(t, uint32(1), c.ContributorID)

	rec = do(t, h, "PATCH", "/capsules/1", map[string]any{"name": "Winter"})
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
	assert.Equal(t, "VERSION_REQUIRED", errorCode(t, rec))

	rec = do(t, h, "PATCH", "/capsules/1?etag=1", map[string]any{"name": "Winter", "version": 2})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "VERSION_CONFLICT_REQUEST", errorCode(t, rec))

	rec = do(t, h, "PATCH", "/capsules/1?etag=1", map[string]any{"name": "Winter"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, `"2"`, rec.Header().Get("ETag"))
	assert.Equal(t, uint32(2), decode[capsule.Capsule](t, rec).Version)

	rec = do(t, h, "PATCH", "/capsules/1", map[string]any{"version": 2})
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
	assert.Equal(t, "NO_OP_UPDATE", errorCode(t, rec))

	rec = do(t, h, "DELETE", "/contributors/1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = do(t, h, "GET", "/capsules/1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NoError(t, st.Verify())
}

func TestItemsAndMerge(t *testing.T) {
	h, _ := setupTest(t)
	seed(t, h)
	rec := do(t, h, "POST", "/capsules", map[string]any{
		"name": "Autumn", "contributor_id": 1, "time_open": "2030-10-01T00:00:00Z",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, h, "POST", "/capsules/1/items", map[string]any{"type": "photo", "metadata": map[string]any{"iso": 200}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = do(t, h, "POST", "/capsules/1/items", map[string]any{"type": "photo", "metadata": map[string]any{"iso": 200}})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "DUPLICATE_SUBMISSION", errorCode(t, rec))
	rec = do(t, h, "POST", "/capsules/2/items", map[string]any{"type": "video"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, h, "GET", "/capsules/2/items/1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, "PATCH", "/capsules/1/items/1?etag=1", map[string]any{"description": "sunset"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "sunset", decode[capsule.Item](t, rec).Description)
	assert.Equal(t, `"2"`, rec.Header().Get("ETag"))

	rec = do(t, h, "POST", "/merges/1/2", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	merged := decode[ops.MergeOutput](t, rec)
	assert.Equal(t, []uint32{1, 2}, merged.Capsule.ItemIDs)
	assert.NotEmpty(t, merged.Record.ID)

	rec = do(t, h, "GET", "/capsules/1/items", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[ops.ListCapsuleItemsOutput](t, rec).Items, 2)

	rec = do(t, h, "GET", "/merges", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[ops.ListMergeRecordsOutput](t, rec).Merges, 1)

	rec = do(t, h, "DELETE", "/capsules/1/items/2", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, h, "GET", "/items/2", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListPagination(t *testing.T) {
	h, _ := setupTest(t)
	for _, email := range []string{"a@x.com", "b@x.com", "c@x.com"} {
		rec := do(t, h, "POST", "/contributors", map[string]any{"name": "n", "email": email})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := do(t, h, "GET", "/contributors?page=2&per_page=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "3", rec.Header().Get("X-Total-Count"))
	assert.Equal(t, "2", rec.Header().Get("X-Page"))
	assert.Equal(t, "2", rec.Header().Get("X-Per-Page"))
	out := decode[ops.ListContributorsOutput](t, rec)
	require.Len(t, out.Contributors, 1)
	assert.Equal(t, "c@x.com", out.Contributors[0].Email)

	rec = do(t, h, "GET", "/contributors?page=x", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, h, "GET", "/contributors?page=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBadRequests(t *testing.T) {
	h, _ := setupTest(t)

	tests := []struct {
		name   string
		method string
		target string
		body   string
	}{
		{"non-numeric id", "GET", "/capsules/abc", ""},
		{"id overflow", "GET", "/capsules/4294967296", ""},
		{"bad etag", "PATCH", "/capsules/1?etag=v1", `{"name":"x"}`},
		{"unknown field", "POST", "/contributors", `{"name":"a","email":"a@x.com","age":3}`},
		{"malformed json", "POST", "/contributors", `{"name":`},
		{"trailing data", "POST", "/contributors", `{"name":"a","email":"a@x.com"} {}`},
		{"merge self", "POST", "/merges/1/1", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Equal(t, "INVALID_REQUEST", errorCode(t, rec))
		})
	}
}

func TestPreview(t *testing.T) {
	h, _ := setupTest(t)
	seed(t, h)
	rec := do(t, h, "POST", "/capsules/1/items", map[string]any{"type": "photo", "path": "/p/<1>.jpg"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, h, "GET", "/capsules/1/preview", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "<strong>beach</strong> week")
	assert.Contains(t, body, "Items (1)")
	assert.Contains(t, body, "/p/&lt;1&gt;.jpg")

	rec = do(t, h, "GET", "/capsules/42/preview", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequestIDAndMetrics(t *testing.T) {
	h, _ := setupTest(t)

	req := httptest.NewRequest("GET", "/capsules", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "req-123", rec.Header().Get(RequestIDHeader))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = do(t, h, "GET", "/capsules/7", nil)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	rec = do(t, h, "GET", "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `keepsake_operations_total{op="capsule_list",result="ok"} 1`)
	assert.Contains(t, body, `keepsake_operations_total{op="capsule_get",result="NOT_FOUND"} 1`)
}
