package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/pesantren-dev/asrama-adp-api/internal/models"
	appErrors "github.com/pesantren-dev/asrama-adp-api/pkg/errors"
)

// Client calls the hosted billing function that owns payment history.
// The function speaks the callable convention: requests wrap their payload
// under "data" and responses come back under "result".
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient builds a billing client against the given function URL.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type callableRequest struct {
	Data any `json:"data"`
}

type paymentHistoryPayload struct {
	SantriID string `json:"santriId"`
}

type callableResponse struct {
	Result *paymentHistoryResult `json:"result"`
	Error  *callableError        `json:"error"`
}

type paymentHistoryResult struct {
	PaymentHistory []models.PaymentRecord `json:"paymentHistory"`
}

type callableError struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// GetSantriPaymentHistory fetches all billing lines for the santri.
// An empty slice is a valid answer: it means no bills exist yet.
func (c *Client) GetSantriPaymentHistory(ctx context.Context, santriID string) ([]models.PaymentRecord, error) {
	if santriID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "santriId is required")
	}

	body, err := json.Marshal(callableRequest{Data: paymentHistoryPayload{SantriID: santriID}})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode billing request")
	}

	url := c.baseURL + "/getSantriPaymentHistory"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build billing request")
	}
	req.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Sugar().Warnw("billing function unreachable", "santri_id", santriID, "error", err)
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "billing function unreachable")
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to read billing response")
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Sugar().Warnw("billing function error",
			"santri_id", santriID,
			"status", resp.StatusCode,
			"elapsed", time.Since(started),
		)
		return nil, appErrors.Clone(appErrors.ErrUpstream, fmt.Sprintf("billing function returned status %d", resp.StatusCode))
	}

	var parsed callableResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to decode billing response")
	}
	if parsed.Error != nil {
		return nil, appErrors.Clone(appErrors.ErrUpstream, parsed.Error.Message)
	}
	if parsed.Result == nil {
		return nil, appErrors.Clone(appErrors.ErrUpstream, "billing function returned no result")
	}

	records := parsed.Result.PaymentHistory
	if records == nil {
		records = []models.PaymentRecord{}
	}
	return records, nil
}
