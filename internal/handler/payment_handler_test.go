package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"
	"github.com/stretchr/testify/require"

	"github.com/pesantren-dev/asrama-adp-api/internal/middleware"
	"github.com/pesantren-dev/asrama-adp-api/internal/models"
	"github.com/pesantren-dev/asrama-adp-api/internal/service"
)

type billingStub struct {
	records []models.PaymentRecord
	err     error
}

func (b *billingStub) GetSantriPaymentHistory(ctx context.Context, santriID string) ([]models.PaymentRecord, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.records, nil
}

type paymentUsersStub struct{}

func (paymentUsersStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	return &models.User{ID: id, Role: models.RoleWaliSantri}, nil
}

func (paymentUsersStub) LinkSantri(ctx context.Context, userID, santriID string) error {
	return nil
}

type snapStub struct {
	resp *snap.Response
	err  *midtrans.Error
}

func (s *snapStub) CreateTransaction(req *snap.Request) (*snap.Response, *midtrans.Error) {
	return s.resp, s.err
}

func newPaymentHandler(t *testing.T, billing *billingStub, gateway *snapStub) *PaymentHandler {
	t.Helper()
	santri := service.NewSantriService(newSantriRepoStub(), nil, nil, nil, "A1", time.Minute)
	payments := service.NewPaymentHistoryService(billing, santri, paymentUsersStub{}, gateway, nil, nil, service.PaymentHistoryConfig{
		InitialEmptyWait:    time.Hour,
		SubsequentEmptyWait: time.Hour,
	})
	t.Cleanup(func() { payments.Close("wali-1") })
	return NewPaymentHandler(payments)
}

func walisantriClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "wali-1", Role: models.RoleWaliSantri, SantriID: "budi_1"}
}

func TestPaymentHandlerViewContent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	billing := &billingStub{records: []models.PaymentRecord{
		{PaymentName: "Syahriah Januari", Paid: 300000, Total: 300000, Status: models.PaymentLunas, Timestamp: 1735700000000},
	}}
	handler := newPaymentHandler(t, billing, nil)

	c, w := newGinContext(http.MethodGet, "/payments", nil)
	c.Set(middleware.ContextUserKey, walisantriClaims())
	handler.View(c)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data models.PaymentView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, models.PaymentViewContent, resp.Data.Phase)
	require.Len(t, resp.Data.Records, 1)
}

func TestPaymentHandlerViewRequiresAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newPaymentHandler(t, &billingStub{}, nil)

	c, w := newGinContext(http.MethodGet, "/payments", nil)
	handler.View(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPaymentHandlerSubmit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	gateway := &snapStub{resp: &snap.Response{Token: "tok-1", RedirectURL: "https://app.sandbox.midtrans.com/snap/v2/tok-1"}}
	handler := newPaymentHandler(t, &billingStub{}, gateway)

	payload, _ := json.Marshal(models.SubmitPaymentRequest{PaymentName: "Syahriah Februari", Amount: 300000})
	c, w := newGinContext(http.MethodPost, "/payments", payload)
	c.Set(middleware.ContextUserKey, walisantriClaims())
	handler.Submit(c)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Data models.SubmitPaymentResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "tok-1", resp.Data.Token)
}

func TestPaymentHandlerSubmitRejectsZeroAmount(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newPaymentHandler(t, &billingStub{}, &snapStub{})

	payload, _ := json.Marshal(models.SubmitPaymentRequest{PaymentName: "Syahriah", Amount: 0})
	c, w := newGinContext(http.MethodPost, "/payments", payload)
	c.Set(middleware.ContextUserKey, walisantriClaims())
	handler.Submit(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
