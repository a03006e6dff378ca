package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pesantren-dev/asrama-adp-api/internal/models"
	"github.com/pesantren-dev/asrama-adp-api/internal/progress"
)

func newBulkService(t *testing.T, repo *mockSantriRepo, cfg BulkConfig) *BulkService {
	t.Helper()
	santri := newSantriService(repo)
	registry := progress.NewRegistry(time.Hour, zap.NewNop())
	svc := NewBulkService(santri, repo, registry, zap.NewNop(), cfg)
	svc.Start(context.Background())
	t.Cleanup(svc.Stop)
	return svc
}

func waitComplete(t *testing.T, svc *BulkService, operationID string) progress.Snapshot {
	t.Helper()
	var snap progress.Snapshot
	require.Eventually(t, func() bool {
		got, err := svc.Progress(operationID)
		if err != nil {
			return false
		}
		snap = *got
		return snap.Complete
	}, 5*time.Second, 10*time.Millisecond)
	return snap
}

func TestBulkServiceImport(t *testing.T) {
	repo := newMockSantriRepo()
	svc := newBulkService(t, repo, BulkConfig{ImportItemDelay: time.Millisecond})

	started, err := svc.StartImport(context.Background(), models.BulkImportRequest{
		Items: []models.SantriInput{
			{Nama: "ahmad fauzi", Kamar: "1A"},
			{Nama: "budi santoso", Kamar: "1A"},
			{Nama: "candra wijaya", Kamar: "2B"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, started.Total)

	snap := waitComplete(t, svc, started.OperationID)
	assert.Equal(t, "import", snap.Kind)
	assert.Equal(t, 100, snap.Percent)
	assert.Equal(t, "Completed", snap.Label)
	assert.Equal(t, 3, snap.Successes)
	assert.Zero(t, snap.Errors)
	assert.Len(t, repo.santri, 3)

	for _, s := range repo.santri {
		assert.Equal(t, models.TanggunganBelumAdaTagihan, s.StatusTanggungan)
		assert.Equal(t, "A1", s.KodeAsrama)
	}
}

func TestBulkServiceImportCountsRowErrors(t *testing.T) {
	repo := newMockSantriRepo()
	svc := newBulkService(t, repo, BulkConfig{})

	started, err := svc.StartImport(context.Background(), models.BulkImportRequest{
		Items: []models.SantriInput{
			{Nama: "ahmad fauzi"},
			{Nama: ""}, // fails validation, operation keeps going
			{Nama: "candra wijaya"},
		},
	})
	require.NoError(t, err)

	snap := waitComplete(t, svc, started.OperationID)
	assert.Equal(t, 2, snap.Successes)
	assert.Equal(t, 1, snap.Errors)
	assert.Len(t, repo.santri, 2)
}

func TestBulkServiceImportRejectsEmpty(t *testing.T) {
	svc := newBulkService(t, newMockSantriRepo(), BulkConfig{})

	_, err := svc.StartImport(context.Background(), models.BulkImportRequest{})
	require.Error(t, err)
}

func TestBulkServiceDeleteBatches(t *testing.T) {
	repo := newMockSantriRepo()
	ids := make([]string, 0, 45)
	for i := 0; i < 45; i++ {
		id := fmt.Sprintf("s%02d", i)
		repo.santri[id] = models.Santri{ID: id, KodeAsrama: "A1"}
		ids = append(ids, id)
	}
	svc := newBulkService(t, repo, BulkConfig{DeleteBatchSize: 20, DeleteBatchPause: time.Millisecond})

	started, err := svc.StartDelete(context.Background(), models.BulkDeleteRequest{Ids: ids})
	require.NoError(t, err)
	assert.Equal(t, 45, started.Total)

	snap := waitComplete(t, svc, started.OperationID)
	assert.Equal(t, "delete", snap.Kind)
	assert.Zero(t, snap.Errors)
	assert.Empty(t, repo.santri)

	require.Len(t, repo.deleted, 3)
	assert.Len(t, repo.deleted[0], 20)
	assert.Len(t, repo.deleted[1], 20)
	assert.Len(t, repo.deleted[2], 5)
}

func TestBulkServiceDeleteFailedBatchCountsWholeBatch(t *testing.T) {
	repo := newMockSantriRepo()
	ids := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("s%d", i)
		repo.santri[id] = models.Santri{ID: id, KodeAsrama: "A1"}
		ids = append(ids, id)
	}
	repo.deleteErr = assert.AnError
	svc := newBulkService(t, repo, BulkConfig{DeleteBatchSize: 20})

	started, err := svc.StartDelete(context.Background(), models.BulkDeleteRequest{Ids: ids})
	require.NoError(t, err)

	snap := waitComplete(t, svc, started.OperationID)
	assert.Equal(t, 5, snap.Errors)
	assert.Zero(t, snap.Successes)
	assert.Len(t, repo.santri, 5)
}

func TestBulkServiceDeleteByFilter(t *testing.T) {
	repo := newMockSantriRepo()
	repo.santri["a"] = models.Santri{ID: "a", KodeAsrama: "A1", Kamar: "1A"}
	repo.santri["b"] = models.Santri{ID: "b", KodeAsrama: "A1", Kamar: "2B"}
	svc := newBulkService(t, repo, BulkConfig{})

	started, err := svc.StartDelete(context.Background(), models.BulkDeleteRequest{
		UseFilter: true,
		Filter:    models.SantriFilter{Kamar: "1A"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, started.Total)

	waitComplete(t, svc, started.OperationID)
	_, remaining := repo.santri["b"]
	assert.True(t, remaining)
	_, gone := repo.santri["a"]
	assert.False(t, gone)
}

func TestBulkServiceDeleteRejectsEmptySelection(t *testing.T) {
	svc := newBulkService(t, newMockSantriRepo(), BulkConfig{})

	_, err := svc.StartDelete(context.Background(), models.BulkDeleteRequest{})
	require.Error(t, err)
}

func TestBulkServiceProgressUnknownOperation(t *testing.T) {
	svc := newBulkService(t, newMockSantriRepo(), BulkConfig{})

	_, err := svc.Progress("nope")
	require.Error(t, err)
	require.Error(t, svc.Dismiss("nope"))
}
