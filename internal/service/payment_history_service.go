package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	midtrans "github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"
	"go.uber.org/zap"

	"github.com/pesantren-dev/asrama-adp-api/internal/models"
	appErrors "github.com/pesantren-dev/asrama-adp-api/pkg/errors"
)

type paymentFetcher interface {
	GetSantriPaymentHistory(ctx context.Context, santriID string) ([]models.PaymentRecord, error)
}

type paymentUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	LinkSantri(ctx context.Context, userID, santriID string) error
}

type snapGateway interface {
	CreateTransaction(req *snap.Request) (*snap.Response, *midtrans.Error)
}

// NewSnapGateway builds a Midtrans Snap client.
func NewSnapGateway(serverKey string, production bool) snapGateway {
	env := midtrans.Sandbox
	if production {
		env = midtrans.Production
	}
	var client snap.Client
	client.New(serverKey, env)
	return &client
}

// PaymentHistoryConfig sets the refresh cadence: the first wait after an
// empty or failed result, then a longer one for each one after that. The
// empty state is only shown once a wait has elapsed.
type PaymentHistoryConfig struct {
	InitialEmptyWait    time.Duration
	SubsequentEmptyWait time.Duration
}

// paymentSession is one viewer's live payment history state. showEmpty
// flips when a wait timer elapses; until then a zero-record result keeps
// the loading phase rather than showing the empty state.
type paymentSession struct {
	santriID      string
	phase         models.PaymentViewPhase
	records       []models.PaymentRecord
	message       string
	generation    uint64
	wait          time.Duration
	showEmpty     bool
	nextRefreshAt time.Time
	refreshTimer  *time.Timer
}

// PaymentHistoryService resolves which santri a viewer may see, fetches
// their billing lines and keeps a per-viewer view state. Empty and errored
// results refresh themselves on a timer, and the empty state stays
// suppressed until that timer has elapsed once; stale fetches that race a
// newer one are discarded by generation.
type PaymentHistoryService struct {
	mu       sync.Mutex
	sessions map[string]*paymentSession

	billing   paymentFetcher
	santri    *SantriService
	users     paymentUserRepository
	gateway   snapGateway
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *MetricsService
	cfg       PaymentHistoryConfig
}

// NewPaymentHistoryService constructs the service. gateway may be nil when
// online payment submission is disabled.
func NewPaymentHistoryService(billing paymentFetcher, santri *SantriService, users paymentUserRepository, gateway snapGateway, validate *validator.Validate, logger *zap.Logger, cfg PaymentHistoryConfig) *PaymentHistoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.InitialEmptyWait <= 0 {
		cfg.InitialEmptyWait = 30 * time.Second
	}
	if cfg.SubsequentEmptyWait <= 0 {
		cfg.SubsequentEmptyWait = 60 * time.Second
	}
	return &PaymentHistoryService{
		sessions:  make(map[string]*paymentSession),
		billing:   billing,
		santri:    santri,
		users:     users,
		gateway:   gateway,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// SetMetrics attaches billing call timing. May be left unset.
func (s *PaymentHistoryService) SetMetrics(metrics *MetricsService) {
	s.metrics = metrics
}

// View returns the viewer's current payment state, opening a session and
// performing the first fetch when none exists yet.
func (s *PaymentHistoryService) View(ctx context.Context, claims *models.JWTClaims) (*models.PaymentView, error) {
	sess, err := s.session(ctx, claims)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	fresh := sess.generation == 0
	s.mu.Unlock()

	if fresh {
		s.fetch(ctx, claims.UserID, sess)
	}
	return s.snapshot(sess), nil
}

// Reload forces an immediate refetch, as when the viewer presses refresh.
// Any pending automatic refresh is superseded.
func (s *PaymentHistoryService) Reload(ctx context.Context, claims *models.JWTClaims) (*models.PaymentView, error) {
	sess, err := s.session(ctx, claims)
	if err != nil {
		return nil, err
	}
	s.fetch(ctx, claims.UserID, sess)
	return s.snapshot(sess), nil
}

// Close tears the viewer's session down, cancelling any scheduled refresh.
func (s *PaymentHistoryService) Close(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[userID]
	if !ok {
		return
	}
	sess.generation++
	if sess.refreshTimer != nil {
		sess.refreshTimer.Stop()
	}
	delete(s.sessions, userID)
}

// SubmitPayment starts an online payment for one billing line and returns
// the gateway token plus redirect URL.
func (s *PaymentHistoryService) SubmitPayment(ctx context.Context, claims *models.JWTClaims, req models.SubmitPaymentRequest) (*models.SubmitPaymentResponse, error) {
	if s.gateway == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "online payment is not configured")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}

	santriID, err := s.resolveSantriID(ctx, claims)
	if err != nil {
		return nil, err
	}

	orderID := uuid.NewString()
	snapReq := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  orderID,
			GrossAmt: req.Amount,
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: claims.FullName,
			Email: claims.Email,
		},
		Items: &[]midtrans.ItemDetails{
			{
				ID:    santriID,
				Price: req.Amount,
				Qty:   1,
				Name:  req.PaymentName,
			},
		},
	}

	resp, snapErr := s.gateway.CreateTransaction(snapReq)
	if snapErr != nil {
		s.logger.Warn("snap transaction failed", zap.String("order_id", orderID), zap.Error(snapErr))
		return nil, appErrors.Wrap(snapErr, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "payment gateway rejected the transaction")
	}

	return &models.SubmitPaymentResponse{Token: resp.Token, RedirectURL: resp.RedirectURL}, nil
}

// session returns the viewer's session, creating one in the loading phase
// when absent.
func (s *PaymentHistoryService) session(ctx context.Context, claims *models.JWTClaims) (*paymentSession, error) {
	s.mu.Lock()
	if sess, ok := s.sessions[claims.UserID]; ok {
		s.mu.Unlock()
		return sess, nil
	}
	s.mu.Unlock()

	santriID, err := s.resolveSantriID(ctx, claims)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[claims.UserID]; ok {
		return sess, nil
	}
	sess := &paymentSession{
		santriID: santriID,
		phase:    models.PaymentViewLoading,
		wait:     s.cfg.InitialEmptyWait,
	}
	s.sessions[claims.UserID] = sess
	return sess, nil
}

// resolveSantriID prefers the santri reference on the token, then falls
// back to the account record, then to a name lookup whose result is linked
// back onto the account.
func (s *PaymentHistoryService) resolveSantriID(ctx context.Context, claims *models.JWTClaims) (string, error) {
	if claims.SantriID != "" {
		return claims.SantriID, nil
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", appErrors.Clone(appErrors.ErrNotFound, "account not found")
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}
	if user.SantriID != nil && *user.SantriID != "" {
		return *user.SantriID, nil
	}
	if user.NamaSantri == nil || *user.NamaSantri == "" {
		return "", appErrors.Clone(appErrors.ErrNotFound, "account is not linked to a santri")
	}

	santri, err := s.santri.ResolveByName(ctx, *user.NamaSantri)
	if err != nil {
		return "", err
	}
	if err := s.users.LinkSantri(ctx, user.ID, santri.ID); err != nil {
		s.logger.Warn("failed to persist santri link", zap.String("user_id", user.ID), zap.Error(err))
	}
	return santri.ID, nil
}

// fetch performs one billing call and applies the outcome, unless a newer
// fetch or a teardown happened while it was in flight.
func (s *PaymentHistoryService) fetch(ctx context.Context, userID string, sess *paymentSession) {
	s.mu.Lock()
	sess.generation++
	gen := sess.generation
	if sess.refreshTimer != nil {
		sess.refreshTimer.Stop()
		sess.refreshTimer = nil
	}
	santriID := sess.santriID
	s.mu.Unlock()

	started := time.Now()
	records, err := s.billing.GetSantriPaymentHistory(ctx, santriID)
	if s.metrics != nil {
		s.metrics.ObserveBillingCall(time.Since(started))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess.generation != gen {
		return
	}

	switch {
	case err != nil:
		sess.phase = models.PaymentViewError
		sess.records = nil
		sess.message = appErrors.FromError(err).Message
		sess.nextRefreshAt = time.Now().Add(sess.wait)
		s.scheduleRefreshLocked(userID, sess, gen)
		sess.wait = s.cfg.SubsequentEmptyWait
	case len(records) == 0:
		// The empty state stays hidden until a wait timer has elapsed;
		// before that the viewer keeps seeing the loading shimmer.
		if sess.showEmpty {
			sess.phase = models.PaymentViewEmpty
			sess.message = "Belum ada riwayat pembayaran"
		} else {
			sess.phase = models.PaymentViewLoading
			sess.message = ""
		}
		sess.records = nil
		sess.nextRefreshAt = time.Now().Add(sess.wait)
		s.scheduleRefreshLocked(userID, sess, gen)
		sess.wait = s.cfg.SubsequentEmptyWait
	default:
		sort.Slice(records, func(i, j int) bool {
			return records[i].Timestamp > records[j].Timestamp
		})
		sess.phase = models.PaymentViewContent
		sess.records = records
		sess.message = ""
		sess.showEmpty = false
		sess.nextRefreshAt = time.Time{}
		sess.wait = s.cfg.InitialEmptyWait
	}
}

func (s *PaymentHistoryService) scheduleRefreshLocked(userID string, sess *paymentSession, gen uint64) {
	wait := sess.wait
	sess.refreshTimer = time.AfterFunc(wait, func() {
		s.mu.Lock()
		stale := sess.generation != gen
		if !stale {
			// The wait has elapsed, so a still-empty refetch may now
			// surface the empty state.
			sess.showEmpty = true
		}
		s.mu.Unlock()
		if stale {
			return
		}
		s.fetch(context.Background(), userID, sess)
	})
}

func (s *PaymentHistoryService) snapshot(sess *paymentSession) *models.PaymentView {
	s.mu.Lock()
	defer s.mu.Unlock()

	view := &models.PaymentView{
		Phase:   sess.phase,
		Message: sess.message,
	}
	if len(sess.records) > 0 {
		view.Records = append([]models.PaymentRecord(nil), sess.records...)
	}
	if !sess.nextRefreshAt.IsZero() {
		view.NextRefreshAt = sess.nextRefreshAt.UnixMilli()
	}
	return view
}
