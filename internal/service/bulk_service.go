package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pesantren-dev/asrama-adp-api/internal/models"
	"github.com/pesantren-dev/asrama-adp-api/internal/progress"
	appErrors "github.com/pesantren-dev/asrama-adp-api/pkg/errors"
	"github.com/pesantren-dev/asrama-adp-api/pkg/jobs"
)

const (
	jobTypeBulkImport = "bulk_import"
	jobTypeBulkDelete = "bulk_delete"
)

// BulkConfig bounds the pacing of bulk roster operations.
type BulkConfig struct {
	ImportItemDelay  time.Duration
	DeleteBatchSize  int
	DeleteBatchPause time.Duration
}

// BulkService runs roster imports and mass deletions in the background,
// one operation at a time, publishing progress through the registry.
type BulkService struct {
	santri   *SantriService
	repo     santriRepository
	registry *progress.Registry
	queue    *jobs.Queue
	logger   *zap.Logger
	metrics  *MetricsService
	cfg      BulkConfig
}

type bulkImportPayload struct {
	tracker *progress.Tracker
	items   []models.SantriInput
}

type bulkDeletePayload struct {
	tracker *progress.Tracker
	ids     []string
}

// NewBulkService constructs a BulkService. Start must be called before any
// operation is accepted.
func NewBulkService(santri *SantriService, repo santriRepository, registry *progress.Registry, logger *zap.Logger, cfg BulkConfig) *BulkService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DeleteBatchSize <= 0 {
		cfg.DeleteBatchSize = 20
	}
	s := &BulkService{
		santri:   santri,
		repo:     repo,
		registry: registry,
		logger:   logger,
		cfg:      cfg,
	}
	// One worker: concurrent bulk operations would interleave their
	// database writes and their pacing sleeps.
	s.queue = jobs.NewQueue("bulk-roster", s.handle, jobs.QueueConfig{
		Workers:    1,
		BufferSize: 8,
		MaxRetries: 1,
		Logger:     logger,
	})
	return s
}

// SetMetrics attaches per-item counters. May be left unset.
func (s *BulkService) SetMetrics(metrics *MetricsService) {
	s.metrics = metrics
}

// Start launches the background worker.
func (s *BulkService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the background worker and dismisses any in-flight operations.
func (s *BulkService) Stop() {
	s.queue.Stop()
	s.registry.Close()
}

// StartImport validates the rows and queues the import. Returns the
// operation ID clients poll for progress.
func (s *BulkService) StartImport(ctx context.Context, req models.BulkImportRequest) (*models.BulkOperationStarted, error) {
	if err := s.santri.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid import payload")
	}

	tracker := s.registry.Start("import", fmt.Sprintf("Mengimpor %d santri...", len(req.Items)), len(req.Items), func() {
		s.santri.invalidate(context.Background())
	})
	snap := tracker.Snapshot()

	job := jobs.Job{
		ID:      snap.OperationID,
		Type:    jobTypeBulkImport,
		Payload: bulkImportPayload{tracker: tracker, items: req.Items},
	}
	if err := s.queue.Enqueue(job); err != nil {
		tracker.Close()
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue import")
	}

	return &models.BulkOperationStarted{OperationID: snap.OperationID, Total: snap.Total}, nil
}

// StartDelete resolves the targeted IDs and queues the deletion. With
// UseFilter set, the request deletes everything currently matching the
// filter, mirroring a select-all over the filtered roster.
func (s *BulkService) StartDelete(ctx context.Context, req models.BulkDeleteRequest) (*models.BulkOperationStarted, error) {
	ids := req.Ids
	if len(ids) == 0 && req.UseFilter {
		matched, err := s.repo.List(ctx, s.santri.kodeAsrama, req.Filter)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve deletion targets")
		}
		ids = make([]string, 0, len(matched))
		for _, m := range matched {
			ids = append(ids, m.ID)
		}
	}
	if len(ids) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no santri selected for deletion")
	}

	tracker := s.registry.Start("delete", fmt.Sprintf("Menghapus %d santri...", len(ids)), len(ids), func() {
		s.santri.invalidate(context.Background())
	})
	snap := tracker.Snapshot()

	job := jobs.Job{
		ID:      snap.OperationID,
		Type:    jobTypeBulkDelete,
		Payload: bulkDeletePayload{tracker: tracker, ids: ids},
	}
	if err := s.queue.Enqueue(job); err != nil {
		tracker.Close()
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue deletion")
	}

	return &models.BulkOperationStarted{OperationID: snap.OperationID, Total: snap.Total}, nil
}

// Progress returns the snapshot for a running or recently finished
// operation.
func (s *BulkService) Progress(operationID string) (*progress.Snapshot, error) {
	tracker, ok := s.registry.Get(operationID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "operation not found")
	}
	snap := tracker.Snapshot()
	return &snap, nil
}

// Dismiss closes the progress panel for an operation ahead of its
// auto-dismiss timer.
func (s *BulkService) Dismiss(operationID string) error {
	tracker, ok := s.registry.Get(operationID)
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "operation not found")
	}
	tracker.Close()
	return nil
}

func (s *BulkService) handle(ctx context.Context, job jobs.Job) error {
	switch payload := job.Payload.(type) {
	case bulkImportPayload:
		s.runImport(ctx, payload)
	case bulkDeletePayload:
		s.runDelete(ctx, payload)
	default:
		s.logger.Sugar().Errorw("unknown bulk job type", "type", job.Type)
	}
	// Item failures are reported through the tracker, never retried as a
	// whole operation.
	return nil
}

// runImport processes rows strictly in order, pacing each write so the
// progress panel advances item by item. Failed rows are counted and
// skipped.
func (s *BulkService) runImport(ctx context.Context, payload bulkImportPayload) {
	base := time.Now().UnixMilli()
	total := len(payload.items)

	for i, item := range payload.items {
		if ctx.Err() != nil {
			payload.tracker.Complete()
			return
		}

		label := fmt.Sprintf("Memproses %s (%d/%d)", item.Nama, i+1, total)
		santri, err := s.santri.build(item, base+int64(i))
		if err == nil {
			err = s.repo.Save(ctx, santri)
		}
		if err != nil {
			s.logger.Warn("import row failed", zap.String("nama", item.Nama), zap.Error(err))
		}
		if s.metrics != nil {
			s.metrics.RecordBulkItem("import", err != nil)
		}
		payload.tracker.Advance(label, err != nil)

		if i < total-1 && s.cfg.ImportItemDelay > 0 {
			select {
			case <-ctx.Done():
				payload.tracker.Complete()
				return
			case <-time.After(s.cfg.ImportItemDelay):
			}
		}
	}
}

// runDelete removes IDs in fixed-size batches. Each batch commits
// atomically: when the commit fails every item in it is reconciled to an
// error, not just the one that broke.
func (s *BulkService) runDelete(ctx context.Context, payload bulkDeletePayload) {
	total := len(payload.ids)
	size := s.cfg.DeleteBatchSize

	for start := 0; start < total; start += size {
		if ctx.Err() != nil {
			payload.tracker.Complete()
			return
		}

		end := start + size
		if end > total {
			end = total
		}
		batch := payload.ids[start:end]

		err := s.repo.DeleteBatch(ctx, batch)
		for i := range batch {
			label := fmt.Sprintf("Menghapus data (%d/%d)", start+i+1, total)
			if s.metrics != nil {
				s.metrics.RecordBulkItem("delete", err != nil)
			}
			payload.tracker.Advance(label, err != nil)
		}
		if err != nil {
			s.logger.Warn("delete batch failed", zap.Int("batch_start", start), zap.Error(err))
		}

		if end < total && s.cfg.DeleteBatchPause > 0 {
			select {
			case <-ctx.Done():
				payload.tracker.Complete()
				return
			case <-time.After(s.cfg.DeleteBatchPause):
			}
		}
	}
}
