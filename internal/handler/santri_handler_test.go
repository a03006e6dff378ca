package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/pesantren-dev/asrama-adp-api/internal/models"
	"github.com/pesantren-dev/asrama-adp-api/internal/progress"
	"github.com/pesantren-dev/asrama-adp-api/internal/service"
)

type santriRepoStub struct {
	mu      sync.Mutex
	records map[string]models.Santri
}

func newSantriRepoStub() *santriRepoStub {
	return &santriRepoStub{records: map[string]models.Santri{}}
}

func (r *santriRepoStub) List(ctx context.Context, kodeAsrama string, filter models.SantriFilter) ([]models.Santri, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Santri, 0, len(r.records))
	for _, s := range r.records {
		if s.KodeAsrama == kodeAsrama && filter.Matches(s) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Nama < out[j].Nama })
	return out, nil
}

func (r *santriRepoStub) FindByID(ctx context.Context, id string) (*models.Santri, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.records[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := s
	return &copied, nil
}

func (r *santriRepoStub) FindByName(ctx context.Context, kodeAsrama, nama string) (*models.Santri, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.records {
		if s.KodeAsrama == kodeAsrama && s.Nama == nama {
			copied := s
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *santriRepoStub) Save(ctx context.Context, s *models.Santri) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[s.ID] = *s
	return nil
}

func (r *santriRepoStub) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, id)
	return nil
}

func (r *santriRepoStub) DeleteBatch(ctx context.Context, ids []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		delete(r.records, id)
	}
	return nil
}

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func newSantriHandler(t *testing.T, repo *santriRepoStub) *SantriHandler {
	t.Helper()
	santri := service.NewSantriService(repo, nil, nil, nil, "A1", time.Minute)
	registry := progress.NewRegistry(time.Minute, nil)
	bulk := service.NewBulkService(santri, repo, registry, nil, service.BulkConfig{
		ImportItemDelay:  time.Millisecond,
		DeleteBatchPause: time.Millisecond,
	})
	ctx, cancel := context.WithCancel(context.Background())
	bulk.Start(ctx)
	t.Cleanup(func() {
		cancel()
		bulk.Stop()
	})
	return NewSantriHandler(santri, bulk, nil)
}

func TestSantriHandlerCreateAndGet(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := newSantriRepoStub()
	handler := newSantriHandler(t, repo)

	payload, _ := json.Marshal(models.SantriInput{Nama: "ahmad fauzi", Kamar: "B2", StatusAktif: "Aktif"})
	c, w := newGinContext(http.MethodPost, "/santri", payload)
	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)

	var created struct {
		Data models.Santri `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.Equal(t, "Ahmad Fauzi", created.Data.Nama)
	require.Equal(t, models.TanggunganBelumAdaTagihan, created.Data.StatusTanggungan)

	c, w = newGinContext(http.MethodGet, "/santri/"+created.Data.ID, nil)
	c.Params = gin.Params{{Key: "id", Value: created.Data.ID}}
	handler.Get(c)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestSantriHandlerListAppliesQueryFilters(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := newSantriRepoStub()
	repo.records["a"] = models.Santri{ID: "a", Nama: "Ahmad", KodeAsrama: "A1", Kamar: "B1", StatusAktif: models.StatusAktifAktif}
	repo.records["b"] = models.Santri{ID: "b", Nama: "Budi", KodeAsrama: "A1", Kamar: "B2", StatusAktif: models.StatusAktifAktif}
	handler := newSantriHandler(t, repo)

	c, w := newGinContext(http.MethodGet, "/santri?kamar=B2&statusAktif=all", nil)
	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data []models.Santri `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	require.Equal(t, "Budi", resp.Data[0].Nama)
}

func TestSantriHandlerCreateRejectsMissingName(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newSantriHandler(t, newSantriRepoStub())

	payload, _ := json.Marshal(models.SantriInput{Kamar: "B1"})
	c, w := newGinContext(http.MethodPost, "/santri", payload)
	handler.Create(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSantriHandlerBulkImportLifecycle(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := newSantriRepoStub()
	handler := newSantriHandler(t, repo)

	payload, _ := json.Marshal(models.BulkImportRequest{Items: []models.SantriInput{
		{Nama: "Ahmad"},
		{Nama: "Budi"},
	}})
	c, w := newGinContext(http.MethodPost, "/santri/bulk-import", payload)
	handler.BulkImport(c)
	require.Equal(t, http.StatusAccepted, w.Code)

	var started struct {
		Data models.BulkOperationStarted `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &started))
	require.NotEmpty(t, started.Data.OperationID)
	require.Equal(t, 2, started.Data.Total)

	require.Eventually(t, func() bool {
		c, w := newGinContext(http.MethodGet, "/santri/bulk/"+started.Data.OperationID, nil)
		c.Params = gin.Params{{Key: "id", Value: started.Data.OperationID}}
		handler.BulkProgress(c)
		if w.Code != http.StatusOK {
			return false
		}
		var resp struct {
			Data progress.Snapshot `json:"data"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			return false
		}
		return resp.Data.Complete && resp.Data.Percent == 100
	}, 5*time.Second, 10*time.Millisecond)

	records, err := repo.List(context.Background(), "A1", models.SantriFilter{})
	require.NoError(t, err)
	require.Len(t, records, 2)
}

func TestSantriHandlerBulkProgressUnknownOperation(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newSantriHandler(t, newSantriRepoStub())

	c, w := newGinContext(http.MethodGet, "/santri/bulk/missing", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}
	handler.BulkProgress(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}
