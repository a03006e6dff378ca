package service

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pesantren-dev/asrama-adp-api/internal/models"
)

type mockSantriRepo struct {
	mu         sync.Mutex
	santri     map[string]models.Santri
	lastFilter models.SantriFilter
	saveErr    error
	deleteErr  error
	deleted    [][]string
}

func newMockSantriRepo() *mockSantriRepo {
	return &mockSantriRepo{santri: make(map[string]models.Santri)}
}

func (m *mockSantriRepo) List(ctx context.Context, kodeAsrama string, filter models.SantriFilter) ([]models.Santri, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastFilter = filter
	out := make([]models.Santri, 0, len(m.santri))
	for _, s := range m.santri {
		if s.KodeAsrama == kodeAsrama && filter.Matches(s) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Nama < out[j].Nama })
	return out, nil
}

func (m *mockSantriRepo) FindByID(ctx context.Context, id string) (*models.Santri, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.santri[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSantriRepo) FindByName(ctx context.Context, kodeAsrama, nama string) (*models.Santri, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.santri {
		if s.KodeAsrama == kodeAsrama && strings.EqualFold(s.Nama, nama) {
			return &s, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockSantriRepo) Save(ctx context.Context, s *models.Santri) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.santri[s.ID] = *s
	return nil
}

func (m *mockSantriRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.santri, id)
	return nil
}

func (m *mockSantriRepo) DeleteBatch(ctx context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, append([]string(nil), ids...))
	if m.deleteErr != nil {
		return m.deleteErr
	}
	for _, id := range ids {
		delete(m.santri, id)
	}
	return nil
}

func newSantriService(repo *mockSantriRepo) *SantriService {
	return NewSantriService(repo, nil, validator.New(), zap.NewNop(), "A1", 0)
}

func TestFormatName(t *testing.T) {
	assert.Equal(t, "Ahmad Fauzi", FormatName("  ahmad   FAUZI "))
	assert.Equal(t, "Siti Nur Azizah", FormatName("siti nur azizah"))
	assert.Equal(t, "M. Ridwan", FormatName("m. ridwan"))
}

func TestFormatNameForID(t *testing.T) {
	assert.Equal(t, "ahmad_fauzi", FormatNameForID("Ahmad Fauzi"))
	assert.Equal(t, "m_ridwan", FormatNameForID("M. Ridwan"))
	assert.Equal(t, "abdul_aziz", FormatNameForID("Abdul-'Aziz"))
}

func TestSantriServiceCreateDefaults(t *testing.T) {
	repo := newMockSantriRepo()
	svc := newSantriService(repo)

	santri, err := svc.Create(context.Background(), models.SantriInput{Nama: "ahmad fauzi", Kamar: "1A"})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(santri.ID, "ahmad_fauzi_"))
	assert.Equal(t, "Ahmad Fauzi", santri.Nama)
	assert.Equal(t, "A1", santri.KodeAsrama)
	assert.Equal(t, models.StatusAktifAktif, santri.StatusAktif)
	assert.Equal(t, models.TanggunganBelumAdaTagihan, santri.StatusTanggungan)
	assert.Zero(t, santri.JumlahTunggakan)
	assert.NotZero(t, santri.CreatedAt)
	assert.Len(t, repo.santri, 1)
}

func TestSantriServiceCreateRequiresName(t *testing.T) {
	svc := newSantriService(newMockSantriRepo())

	_, err := svc.Create(context.Background(), models.SantriInput{Kamar: "1A"})
	require.Error(t, err)
}

func TestSantriServiceUpdatePreservesScopeAndBilling(t *testing.T) {
	repo := newMockSantriRepo()
	repo.santri["id1"] = models.Santri{
		ID:               "id1",
		Nama:             "Ahmad Fauzi",
		KodeAsrama:       "A1",
		Kamar:            "1A",
		StatusAktif:      models.StatusAktifAktif,
		StatusTanggungan: models.TanggunganAdaTunggakan,
		JumlahTunggakan:  150000,
		CreatedAt:        1700000000000,
	}
	svc := newSantriService(repo)

	updated, err := svc.Update(context.Background(), "id1", models.SantriInput{
		Nama:        "ahmad fauzi",
		Kamar:       "2B",
		StatusAktif: "Boyong",
	})
	require.NoError(t, err)

	assert.Equal(t, "2B", updated.Kamar)
	assert.Equal(t, models.StatusAktifBoyong, updated.StatusAktif)
	assert.Equal(t, "A1", updated.KodeAsrama)
	assert.Equal(t, models.TanggunganAdaTunggakan, updated.StatusTanggungan)
	assert.Equal(t, 150000, updated.JumlahTunggakan)
	assert.Equal(t, int64(1700000000000), updated.CreatedAt)
}

func TestSantriServiceUpdateNotFound(t *testing.T) {
	svc := newSantriService(newMockSantriRepo())

	_, err := svc.Update(context.Background(), "missing", models.SantriInput{Nama: "Ahmad"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSantriServiceListAppliesFilter(t *testing.T) {
	repo := newMockSantriRepo()
	repo.santri["a"] = models.Santri{ID: "a", Nama: "Ahmad", KodeAsrama: "A1", Kamar: "1A", StatusAktif: models.StatusAktifAktif}
	repo.santri["b"] = models.Santri{ID: "b", Nama: "Budi", KodeAsrama: "A1", Kamar: "2B", StatusAktif: models.StatusAktifAktif}
	svc := newSantriService(repo)

	out, err := svc.List(context.Background(), models.SantriFilter{Kamar: "1A", StatusTanggungan: "all"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Ahmad", out[0].Nama)
}

func TestSantriServiceResolveByName(t *testing.T) {
	repo := newMockSantriRepo()
	repo.santri["a"] = models.Santri{ID: "a", Nama: "Ahmad Fauzi", KodeAsrama: "A1"}
	svc := newSantriService(repo)

	santri, err := svc.ResolveByName(context.Background(), "ahmad FAUZI")
	require.NoError(t, err)
	assert.Equal(t, "a", santri.ID)

	_, err = svc.ResolveByName(context.Background(), "tidak ada")
	require.Error(t, err)
}
