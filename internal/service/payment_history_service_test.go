package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pesantren-dev/asrama-adp-api/internal/models"
)

type fetchResult struct {
	records []models.PaymentRecord
	err     error
}

type mockBilling struct {
	mu        sync.Mutex
	responses []fetchResult
	calls     int
	lastID    string
}

func (m *mockBilling) GetSantriPaymentHistory(ctx context.Context, santriID string) ([]models.PaymentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastID = santriID
	res := m.responses[0]
	if len(m.responses) > 1 {
		m.responses = m.responses[1:]
	}
	return res.records, res.err
}

func (m *mockBilling) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockPaymentUsers struct {
	users  map[string]models.User
	linked map[string]string
}

func (m *mockPaymentUsers) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return &u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockPaymentUsers) LinkSantri(ctx context.Context, userID, santriID string) error {
	if m.linked == nil {
		m.linked = make(map[string]string)
	}
	m.linked[userID] = santriID
	return nil
}

func newPaymentService(billing *mockBilling, santriRepo *mockSantriRepo, users *mockPaymentUsers, cfg PaymentHistoryConfig) *PaymentHistoryService {
	if santriRepo == nil {
		santriRepo = newMockSantriRepo()
	}
	if users == nil {
		users = &mockPaymentUsers{}
	}
	return NewPaymentHistoryService(billing, newSantriService(santriRepo), users, nil, validator.New(), zap.NewNop(), cfg)
}

func waliClaims(userID, santriID string) *models.JWTClaims {
	return &models.JWTClaims{UserID: userID, Role: models.RoleWaliSantri, SantriID: santriID}
}

func TestPaymentHistoryContentSortedDesc(t *testing.T) {
	billing := &mockBilling{responses: []fetchResult{{records: []models.PaymentRecord{
		{PaymentName: "Januari", Timestamp: 1},
		{PaymentName: "Maret", Timestamp: 3},
		{PaymentName: "Februari", Timestamp: 2},
	}}}}
	svc := newPaymentService(billing, nil, nil, PaymentHistoryConfig{})

	view, err := svc.View(context.Background(), waliClaims("u1", "s1"))
	require.NoError(t, err)

	assert.Equal(t, models.PaymentViewContent, view.Phase)
	require.Len(t, view.Records, 3)
	assert.Equal(t, "Maret", view.Records[0].PaymentName)
	assert.Equal(t, "Februari", view.Records[1].PaymentName)
	assert.Equal(t, "Januari", view.Records[2].PaymentName)
	assert.Equal(t, "s1", billing.lastID)
}

func TestPaymentHistoryEmptySchedulesRefresh(t *testing.T) {
	billing := &mockBilling{responses: []fetchResult{
		{records: nil},
		{records: []models.PaymentRecord{{PaymentName: "Syahriah", Timestamp: 1}}},
	}}
	svc := newPaymentService(billing, nil, nil, PaymentHistoryConfig{
		InitialEmptyWait:    20 * time.Millisecond,
		SubsequentEmptyWait: 40 * time.Millisecond,
	})
	claims := waliClaims("u1", "s1")

	view, err := svc.View(context.Background(), claims)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentViewLoading, view.Phase)
	assert.NotZero(t, view.NextRefreshAt)

	// The scheduled refresh finds records and flips the view to content.
	require.Eventually(t, func() bool {
		v, err := svc.View(context.Background(), claims)
		return err == nil && v.Phase == models.PaymentViewContent
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, billing.callCount())
}

func TestPaymentHistoryEmptySuppressedUntilWaitElapses(t *testing.T) {
	billing := &mockBilling{responses: []fetchResult{{records: nil}}}
	svc := newPaymentService(billing, nil, nil, PaymentHistoryConfig{
		InitialEmptyWait:    time.Hour,
		SubsequentEmptyWait: time.Hour,
	})
	claims := waliClaims("u1", "s1")

	// With the wait still pending, a zero-record result keeps the loading
	// phase rather than showing the empty state.
	view, err := svc.View(context.Background(), claims)
	require.NoError(t, err)
	assert.NotEqual(t, models.PaymentViewEmpty, view.Phase)
	assert.Equal(t, models.PaymentViewLoading, view.Phase)
	assert.NotZero(t, view.NextRefreshAt)
}

func TestPaymentHistoryEmptyShownAfterWaitElapses(t *testing.T) {
	billing := &mockBilling{responses: []fetchResult{{records: nil}}}
	svc := newPaymentService(billing, nil, nil, PaymentHistoryConfig{
		InitialEmptyWait:    10 * time.Millisecond,
		SubsequentEmptyWait: time.Hour,
	})
	claims := waliClaims("u1", "s1")

	_, err := svc.View(context.Background(), claims)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		v, err := svc.View(context.Background(), claims)
		return err == nil && v.Phase == models.PaymentViewEmpty
	}, time.Second, 2*time.Millisecond)
}

func TestPaymentHistoryRepeatedEmptyBacksOff(t *testing.T) {
	billing := &mockBilling{responses: []fetchResult{{records: nil}}}
	svc := newPaymentService(billing, nil, nil, PaymentHistoryConfig{
		InitialEmptyWait:    10 * time.Millisecond,
		SubsequentEmptyWait: time.Hour,
	})
	claims := waliClaims("u1", "s1")

	_, err := svc.View(context.Background(), claims)
	require.NoError(t, err)

	// Second (automatic) fetch also comes back empty, then backs off for
	// the long wait instead of refetching again.
	require.Eventually(t, func() bool {
		return billing.callCount() == 2
	}, time.Second, 2*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 2, billing.callCount())

	view, err := svc.View(context.Background(), claims)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentViewEmpty, view.Phase)
}

func TestPaymentHistoryErrorArmsRetryTimer(t *testing.T) {
	billing := &mockBilling{responses: []fetchResult{
		{err: assert.AnError},
		{records: []models.PaymentRecord{{PaymentName: "Syahriah", Timestamp: 1}}},
	}}
	svc := newPaymentService(billing, nil, nil, PaymentHistoryConfig{
		InitialEmptyWait: 10 * time.Millisecond,
	})
	claims := waliClaims("u1", "s1")

	view, err := svc.View(context.Background(), claims)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentViewError, view.Phase)
	assert.NotZero(t, view.NextRefreshAt)

	// The same wait timer retries the fetch after a failure.
	require.Eventually(t, func() bool {
		v, err := svc.View(context.Background(), claims)
		return err == nil && v.Phase == models.PaymentViewContent
	}, time.Second, 2*time.Millisecond)
	assert.Equal(t, 2, billing.callCount())
}

func TestPaymentHistoryErrorFallsBackToEmptyState(t *testing.T) {
	billing := &mockBilling{responses: []fetchResult{
		{err: assert.AnError},
		{records: nil},
	}}
	svc := newPaymentService(billing, nil, nil, PaymentHistoryConfig{
		InitialEmptyWait:    10 * time.Millisecond,
		SubsequentEmptyWait: time.Hour,
	})
	claims := waliClaims("u1", "s1")

	view, err := svc.View(context.Background(), claims)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentViewError, view.Phase)

	// Once the armed wait elapses a zero-record retry shows the empty
	// state instead of lingering on the error.
	require.Eventually(t, func() bool {
		v, err := svc.View(context.Background(), claims)
		return err == nil && v.Phase == models.PaymentViewEmpty
	}, time.Second, 2*time.Millisecond)
}

func TestPaymentHistoryReloadResetsWait(t *testing.T) {
	billing := &mockBilling{responses: []fetchResult{
		{records: nil},
		{records: []models.PaymentRecord{{PaymentName: "Syahriah", Timestamp: 9}}},
	}}
	svc := newPaymentService(billing, nil, nil, PaymentHistoryConfig{
		InitialEmptyWait:    time.Hour,
		SubsequentEmptyWait: time.Hour,
	})
	claims := waliClaims("u1", "s1")

	view, err := svc.View(context.Background(), claims)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentViewLoading, view.Phase)

	view, err = svc.Reload(context.Background(), claims)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentViewContent, view.Phase)
	assert.Equal(t, 2, billing.callCount())
}

func TestPaymentHistoryCloseCancelsRefresh(t *testing.T) {
	billing := &mockBilling{responses: []fetchResult{{records: nil}}}
	svc := newPaymentService(billing, nil, nil, PaymentHistoryConfig{
		InitialEmptyWait: 10 * time.Millisecond,
	})
	claims := waliClaims("u1", "s1")

	_, err := svc.View(context.Background(), claims)
	require.NoError(t, err)
	svc.Close(claims.UserID)

	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, 1, billing.callCount())
}

func TestPaymentHistoryResolvesByName(t *testing.T) {
	santriRepo := newMockSantriRepo()
	santriRepo.santri["ahmad_fauzi_1"] = models.Santri{ID: "ahmad_fauzi_1", Nama: "Ahmad Fauzi", KodeAsrama: "A1"}
	nama := "ahmad fauzi"
	users := &mockPaymentUsers{users: map[string]models.User{
		"u1": {ID: "u1", NamaSantri: &nama},
	}}
	billing := &mockBilling{responses: []fetchResult{{records: []models.PaymentRecord{{PaymentName: "Syahriah", Timestamp: 1}}}}}
	svc := newPaymentService(billing, santriRepo, users, PaymentHistoryConfig{})

	view, err := svc.View(context.Background(), waliClaims("u1", ""))
	require.NoError(t, err)
	assert.Equal(t, models.PaymentViewContent, view.Phase)
	assert.Equal(t, "ahmad_fauzi_1", billing.lastID)
	assert.Equal(t, "ahmad_fauzi_1", users.linked["u1"])
}

func TestPaymentHistoryUnlinkedAccount(t *testing.T) {
	users := &mockPaymentUsers{users: map[string]models.User{"u1": {ID: "u1"}}}
	billing := &mockBilling{responses: []fetchResult{{records: nil}}}
	svc := newPaymentService(billing, nil, users, PaymentHistoryConfig{})

	_, err := svc.View(context.Background(), waliClaims("u1", ""))
	require.Error(t, err)
}
