package billing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pesantren-dev/asrama-adp-api/internal/models"
	appErrors "github.com/pesantren-dev/asrama-adp-api/pkg/errors"
)

func TestGetSantriPaymentHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/getSantriPaymentHistory", r.URL.Path)

		var req struct {
			Data struct {
				SantriID string `json:"santriId"`
			} `json:"data"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "ahmad_fauzi_1700000000000", req.Data.SantriID)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":{"paymentHistory":[
			{"paymentName":"Syahriah Januari","paid":300000,"total":300000,"status":"Lunas","timestamp":1704067200000,"santriId":"ahmad_fauzi_1700000000000"},
			{"paymentName":"Syahriah Februari","paid":0,"total":300000,"status":"Belum Lunas","timestamp":1706745600000,"santriId":"ahmad_fauzi_1700000000000"}
		]}}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second, nil)
	records, err := client.GetSantriPaymentHistory(context.Background(), "ahmad_fauzi_1700000000000")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Syahriah Januari", records[0].PaymentName)
	assert.Equal(t, models.PaymentLunas, records[0].Status)
	assert.Equal(t, int64(300000), records[0].Total)
}

func TestGetSantriPaymentHistoryEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":{"paymentHistory":[]}}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second, nil)
	records, err := client.GetSantriPaymentHistory(context.Background(), "s1")
	require.NoError(t, err)
	require.NotNil(t, records)
	assert.Empty(t, records)
}

func TestGetSantriPaymentHistoryFunctionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":{"status":"NOT_FOUND","message":"santri tidak ditemukan"}}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second, nil)
	_, err := client.GetSantriPaymentHistory(context.Background(), "s1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUpstream.Code, appErr.Code)
	assert.Equal(t, "santri tidak ditemukan", appErr.Message)
}

func TestGetSantriPaymentHistoryHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second, nil)
	_, err := client.GetSantriPaymentHistory(context.Background(), "s1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUpstream.Code, appErrors.FromError(err).Code)
}

func TestGetSantriPaymentHistoryRequiresID(t *testing.T) {
	client := NewClient("http://localhost:0", time.Second, nil)
	_, err := client.GetSantriPaymentHistory(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
