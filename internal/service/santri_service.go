package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/pesantren-dev/asrama-adp-api/internal/models"
	appErrors "github.com/pesantren-dev/asrama-adp-api/pkg/errors"
)

type santriRepository interface {
	List(ctx context.Context, kodeAsrama string, filter models.SantriFilter) ([]models.Santri, error)
	FindByID(ctx context.Context, id string) (*models.Santri, error)
	FindByName(ctx context.Context, kodeAsrama, nama string) (*models.Santri, error)
	Save(ctx context.Context, s *models.Santri) error
	Delete(ctx context.Context, id string) error
	DeleteBatch(ctx context.Context, ids []string) error
}

type santriCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// SantriService implements roster use cases for a single asrama.
type SantriService struct {
	repo       santriRepository
	cache      santriCache
	validator  *validator.Validate
	logger     *zap.Logger
	metrics    *MetricsService
	kodeAsrama string
	cacheTTL   time.Duration
}

// NewSantriService constructs a SantriService. cache may be nil.
func NewSantriService(repo santriRepository, cache santriCache, validate *validator.Validate, logger *zap.Logger, kodeAsrama string, cacheTTL time.Duration) *SantriService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &SantriService{
		repo:       repo,
		cache:      cache,
		validator:  validate,
		logger:     logger,
		kodeAsrama: kodeAsrama,
		cacheTTL:   cacheTTL,
	}
}

// SetMetrics attaches cache hit/miss counters. May be left unset.
func (s *SantriService) SetMetrics(metrics *MetricsService) {
	s.metrics = metrics
}

// KodeAsrama returns the asrama this service is scoped to.
func (s *SantriService) KodeAsrama() string {
	return s.kodeAsrama
}

// List returns the roster matching the filter, ordered by name. Unfiltered
// reads go through the cache; filtered reads always hit the database.
func (s *SantriService) List(ctx context.Context, filter models.SantriFilter) ([]models.Santri, error) {
	cacheKey := fmt.Sprintf("santri:%s:all", s.kodeAsrama)
	if s.cache != nil && filter.IsZero() {
		var cached []models.Santri
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			if s.metrics != nil {
				s.metrics.RecordCacheOperation(true)
			}
			return cached, nil
		}
		if s.metrics != nil {
			s.metrics.RecordCacheOperation(false)
		}
	}

	santri, err := s.repo.List(ctx, s.kodeAsrama, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list santri")
	}

	if s.cache != nil && filter.IsZero() {
		if err := s.cache.Set(ctx, cacheKey, santri, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache roster", zap.Error(err))
		}
	}
	return santri, nil
}

// Get fetches one santri by ID.
func (s *SantriService) Get(ctx context.Context, id string) (*models.Santri, error) {
	santri, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "santri not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load santri")
	}
	return santri, nil
}

// Create registers a new santri. The record ID derives from the formatted
// name plus the creation timestamp, and billing fields start at their
// "no bills yet" defaults.
func (s *SantriService) Create(ctx context.Context, input models.SantriInput) (*models.Santri, error) {
	santri, err := s.build(input, time.Now().UnixMilli())
	if err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, santri); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create santri")
	}
	s.invalidate(ctx)
	return santri, nil
}

// Update modifies an existing santri. The asrama code, creation timestamp
// and billing fields of the stored record are preserved.
func (s *SantriService) Update(ctx context.Context, id string, input models.SantriInput) (*models.Santri, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid santri payload")
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "santri not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load santri")
	}

	existing.Nama = FormatName(input.Nama)
	existing.Kamar = input.Kamar
	existing.JenjangPendidikan = input.JenjangPendidikan
	existing.ProgramStudi = input.ProgramStudi
	existing.Semester = input.Semester
	existing.TahunMasuk = input.TahunMasuk
	existing.NomorWalisantri = input.NomorWalisantri
	if input.StatusAktif != "" {
		existing.StatusAktif = models.StatusAktif(input.StatusAktif)
	}

	if err := s.repo.Save(ctx, existing); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update santri")
	}
	s.invalidate(ctx)
	return existing, nil
}

// Delete removes one santri.
func (s *SantriService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete santri")
	}
	s.invalidate(ctx)
	return nil
}

// ResolveByName finds a santri of this asrama by formatted name match.
func (s *SantriService) ResolveByName(ctx context.Context, nama string) (*models.Santri, error) {
	santri, err := s.repo.FindByName(ctx, s.kodeAsrama, FormatName(nama))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "santri not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve santri")
	}
	return santri, nil
}

// build validates the input and assembles a fresh record. The millisecond
// timestamp becomes both the creation time and the ID suffix, so bulk
// imports pass distinct offsets to keep IDs unique.
func (s *SantriService) build(input models.SantriInput, unixMilli int64) (*models.Santri, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid santri payload")
	}

	nama := FormatName(input.Nama)
	statusAktif := models.StatusAktif(input.StatusAktif)
	if input.StatusAktif == "" {
		statusAktif = models.StatusAktifAktif
	}

	return &models.Santri{
		ID:                fmt.Sprintf("%s_%d", FormatNameForID(nama), unixMilli),
		Nama:              nama,
		KodeAsrama:        s.kodeAsrama,
		Kamar:             input.Kamar,
		JenjangPendidikan: input.JenjangPendidikan,
		ProgramStudi:      input.ProgramStudi,
		Semester:          input.Semester,
		TahunMasuk:        input.TahunMasuk,
		NomorWalisantri:   input.NomorWalisantri,
		StatusAktif:       statusAktif,
		StatusTanggungan:  models.TanggunganBelumAdaTagihan,
		JumlahTunggakan:   0,
		CreatedAt:         unixMilli,
	}, nil
}

func (s *SantriService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, fmt.Sprintf("santri:%s:*", s.kodeAsrama)); err != nil {
		s.logger.Warn("failed to invalidate roster cache", zap.Error(err))
	}
}

// FormatName trims, collapses repeated whitespace and title-cases each word.
func FormatName(raw string) string {
	words := strings.Fields(raw)
	for i, word := range words {
		runes := []rune(strings.ToLower(word))
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

// FormatNameForID lowercases the name and replaces every run of
// non-alphanumeric characters with a single underscore.
func FormatNameForID(nama string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(nama) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore && b.Len() > 0 {
			b.WriteRune('_')
			lastUnderscore = true
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
