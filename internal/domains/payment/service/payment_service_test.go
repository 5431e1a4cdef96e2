package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casanova-portal/internal/domains/payment/gateway"
	"casanova-portal/internal/domains/payment/ledger"
	"casanova-portal/internal/domains/payment/model"
	"casanova-portal/internal/domains/payment/repository"
)

// =====================================================
// FAKES
// =====================================================

type fakeIntentRepo struct {
	mu      sync.Mutex
	nextID  int64
	intents map[int64]*model.PaymentIntent

	createErr error
	getErr    error
}

func newFakeIntentRepo() *fakeIntentRepo {
	return &fakeIntentRepo{nextID: 1, intents: make(map[int64]*model.PaymentIntent)}
}

func (r *fakeIntentRepo) Create(ctx context.Context, intent *model.PaymentIntent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	intent.ID = r.nextID
	r.nextID++
	intent.CreatedAt = time.Now()
	intent.UpdatedAt = intent.CreatedAt
	cp := *intent
	r.intents[intent.ID] = &cp
	return nil
}

func (r *fakeIntentRepo) Update(ctx context.Context, id int64, upd repository.IntentUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	intent, ok := r.intents[id]
	if !ok {
		return model.ErrIntentNotFound
	}
	if upd.Status != nil {
		intent.Status = *upd.Status
	}
	if upd.Payload != nil {
		intent.Payload = *upd.Payload
	}
	intent.UpdatedAt = time.Now()
	return nil
}

func (r *fakeIntentRepo) GetByToken(ctx context.Context, token string) (*model.PaymentIntent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	for _, intent := range r.intents {
		if intent.Token == token {
			cp := *intent
			return &cp, nil
		}
	}
	return nil, model.ErrIntentNotFound
}

func (r *fakeIntentRepo) GetByID(ctx context.Context, id int64) (*model.PaymentIntent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	intent, ok := r.intents[id]
	if !ok {
		return nil, model.ErrIntentNotFound
	}
	cp := *intent
	return &cp, nil
}

func (r *fakeIntentRepo) MarkPaid(ctx context.Context, id int64, payload model.IntentPayload) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	intent, ok := r.intents[id]
	if !ok {
		return false, nil
	}
	if intent.Status == model.IntentStatusPaid || intent.Status == model.IntentStatusFailed {
		return false, nil
	}
	intent.Status = model.IntentStatusPaid
	intent.Payload = payload
	intent.UpdatedAt = time.Now()
	return true, nil
}

func (r *fakeIntentRepo) ListPaidPendingCollection(ctx context.Context, limit int) ([]*model.PaymentIntent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.PaymentIntent
	for _, intent := range r.intents {
		if intent.Status == model.IntentStatusPaid && intent.CollectionRecordedAt == nil {
			cp := *intent
			out = append(out, &cp)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (r *fakeIntentRepo) MarkCollectionRecorded(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	intent, ok := r.intents[id]
	if !ok {
		return model.ErrIntentNotFound
	}
	now := time.Now()
	intent.CollectionRecordedAt = &now
	return nil
}

type fakeLedger struct {
	mu           sync.Mutex
	ownedFolders map[int64]int64 // folder -> client
	reservations map[int64][]ledger.Reservation
	calc         map[int64]*ledger.PaymentCalc
	collections  map[string]ledger.CollectionRecord

	recordErr error
	calcErr   error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		ownedFolders: make(map[int64]int64),
		reservations: make(map[int64][]ledger.Reservation),
		calc:         make(map[int64]*ledger.PaymentCalc),
		collections:  make(map[string]ledger.CollectionRecord),
	}
}

func (l *fakeLedger) FolderBelongsToClient(ctx context.Context, folderID, clientID int64) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ownedFolders[folderID] == clientID, nil
}

func (l *fakeLedger) ReservationsForFolder(ctx context.Context, folderID, clientID int64) ([]ledger.Reservation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reservations[folderID], nil
}

func (l *fakeLedger) CalcFolderPayment(ctx context.Context, folderID, clientID int64, reservations []ledger.Reservation) (*ledger.PaymentCalc, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.calcErr != nil {
		return nil, l.calcErr
	}
	calc, ok := l.calc[folderID]
	if !ok {
		return nil, fmt.Errorf("no calc for folder %d", folderID)
	}
	return calc, nil
}

func (l *fakeLedger) HasCollection(ctx context.Context, token string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.collections[token]
	return ok, nil
}

func (l *fakeLedger) RecordCollection(ctx context.Context, rec ledger.CollectionRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.recordErr != nil {
		return l.recordErr
	}
	l.collections[rec.IntentToken] = rec
	return nil
}

type fakeStripe struct {
	keyConfigured     bool
	webhookConfigured bool
	validSig          string

	createResp *gateway.BankTransferIntentResponse
	createErr  error
	calls      int
}

func (s *fakeStripe) IsConfigured() bool {
	return s.keyConfigured
}

func (s *fakeStripe) CreateBankTransferIntent(ctx context.Context, req gateway.BankTransferIntentRequest) (*gateway.BankTransferIntentResponse, error) {
	s.calls++
	if s.createErr != nil {
		return nil, s.createErr
	}
	return s.createResp, nil
}

func (s *fakeStripe) VerifyWebhookSignature(payload []byte, sigHeader string) bool {
	return s.webhookConfigured && sigHeader == s.validSig
}

func (s *fakeStripe) WebhookConfigured() bool {
	return s.webhookConfigured
}

type fakeRedsys struct {
	payURL string
}

func (r *fakeRedsys) FolderPayURL(folderID int64) string {
	if r.payURL == "" {
		return ""
	}
	return fmt.Sprintf("%s?expediente=%d", r.payURL, folderID)
}

type memoryCache struct {
	mu    sync.Mutex
	items map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{items: make(map[string][]byte)}
}

func (c *memoryCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.items[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, dest)
}

func (c *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.items[key] = data
	return nil
}

func (c *memoryCache) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.items, k)
	}
	return nil
}

func (c *memoryCache) DeletePattern(ctx context.Context, pattern string) error {
	return nil
}

func (c *memoryCache) Ping(ctx context.Context) error { return nil }

type fakeEnqueuer struct {
	mu        sync.Mutex
	intentIDs []int64
}

func (e *fakeEnqueuer) EnqueueRecordCollection(ctx context.Context, intentID int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.intentIDs = append(e.intentIDs, intentID)
	return nil
}

// =====================================================
// FIXTURE
// =====================================================

const (
	testFolderID = int64(42)
	testClientID = int64(7)
	testUserID   = int64(100)
	validSig     = "t=123,v1=valid"
)

var testActor = model.Actor{UserID: testUserID, ClientID: testClientID}

type fixture struct {
	repo     *fakeIntentRepo
	ledger   *fakeLedger
	stripe   *fakeStripe
	redsys   *fakeRedsys
	cache    *memoryCache
	enqueuer *fakeEnqueuer
	svc      PaymentService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo := newFakeIntentRepo()
	ldg := newFakeLedger()
	ldg.ownedFolders[testFolderID] = testClientID
	ldg.reservations[testFolderID] = []ledger.Reservation{
		{ID: 1, Service: "Hotel", StartDate: time.Now().Add(90 * 24 * time.Hour), Amount: decimal.NewFromInt(1000)},
	}
	ldg.calc[testFolderID] = &ledger.PaymentCalc{
		Total:   decimal.NewFromInt(1000),
		Paid:    decimal.Zero,
		Pending: decimal.NewFromInt(1000),
	}

	stripeGw := &fakeStripe{
		keyConfigured:     true,
		webhookConfigured: true,
		validSig:          validSig,
		createResp: &gateway.BankTransferIntentResponse{
			ID:     "pi_123",
			Status: "requires_action",
			Instructions: model.BankTransferInstructions{
				IBAN:      "ES9121000418450200051332",
				Reference: "REF-001",
			},
		},
	}
	redsysGw := &fakeRedsys{payURL: "https://pay.example.com/redsys"}
	c := newMemoryCache()
	enq := &fakeEnqueuer{}

	policy := ledger.NewStandardDepositPolicy(30, 30)
	svc := NewPaymentService(repo, ldg, policy, stripeGw, redsysGw, c, enq, zerolog.Nop(), Options{
		LedgerWriteTimeout: time.Second,
	})

	return &fixture{repo: repo, ledger: ldg, stripe: stripeGw, redsys: redsysGw, cache: c, enqueuer: enq, svc: svc}
}

func (f *fixture) webhookBody(t *testing.T, eventID, piStatus, token string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"id":   eventID,
		"type": model.StripeEventPaymentSucceeded,
		"data": map[string]interface{}{
			"object": map[string]interface{}{
				"id":       "pi_123",
				"status":   piStatus,
				"metadata": map[string]string{"casanova_token": token},
			},
		},
	})
	require.NoError(t, err)
	return body
}

func payErrCode(t *testing.T, err error) string {
	t.Helper()
	var payErr *model.PaymentError
	require.ErrorAs(t, err, &payErr)
	return payErr.Code
}

// =====================================================
// PAYMENT CONTEXT
// =====================================================

func TestDescribeForUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pctx, err := f.svc.DescribeForUser(ctx, testActor, testFolderID)
	require.NoError(t, err)

	assert.True(t, pctx.CanPay)
	assert.Equal(t, testClientID, pctx.ClientID)
	assert.True(t, pctx.Pending.Equal(decimal.NewFromInt(1000)))
	assert.Contains(t, pctx.PayURL, "expediente=42")

	deposit := pctx.Actions[model.PayTypeDeposit]
	assert.True(t, deposit.Allowed)
	assert.True(t, deposit.Amount.Equal(decimal.NewFromInt(300)), "30%% of pending, got %s", deposit.Amount)

	balance := pctx.Actions[model.PayTypeBalance]
	assert.True(t, balance.Allowed)
	assert.True(t, balance.Amount.Equal(decimal.NewFromInt(1000)))
}

func TestDescribeForUserNoClient(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.DescribeForUser(context.Background(), model.Actor{UserID: testUserID}, testFolderID)
	assert.Equal(t, model.ErrCodeNoClient, payErrCode(t, err))
}

func TestDescribeForUserForeignFolder(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.DescribeForUser(context.Background(), model.Actor{UserID: 2, ClientID: 99}, testFolderID)
	assert.Equal(t, model.ErrCodePermissions, payErrCode(t, err))
}

func TestDescribeForUserNoReservations(t *testing.T) {
	f := newFixture(t)
	f.ledger.reservations[testFolderID] = nil

	_, err := f.svc.DescribeForUser(context.Background(), testActor, testFolderID)
	assert.Equal(t, model.ErrCodeReservationsEmpty, payErrCode(t, err))
}

func TestDescribeForUserDepositBlockedAfterPartialPayment(t *testing.T) {
	f := newFixture(t)
	f.ledger.calc[testFolderID] = &ledger.PaymentCalc{
		Total:   decimal.NewFromInt(1000),
		Paid:    decimal.NewFromInt(300),
		Pending: decimal.NewFromInt(700),
	}

	pctx, err := f.svc.DescribeForUser(context.Background(), testActor, testFolderID)
	require.NoError(t, err)

	assert.False(t, pctx.Actions[model.PayTypeDeposit].Allowed)
	assert.True(t, pctx.Actions[model.PayTypeDeposit].Amount.IsZero())
	assert.True(t, pctx.Actions[model.PayTypeBalance].Allowed)
}

func TestDescribeForUserDepositBlockedNearDeparture(t *testing.T) {
	f := newFixture(t)
	f.ledger.reservations[testFolderID] = []ledger.Reservation{
		{ID: 1, Service: "Hotel", StartDate: time.Now().Add(5 * 24 * time.Hour), Amount: decimal.NewFromInt(1000)},
	}

	pctx, err := f.svc.DescribeForUser(context.Background(), testActor, testFolderID)
	require.NoError(t, err)
	assert.False(t, pctx.Actions[model.PayTypeDeposit].Allowed)
}

func TestDescribeForUserFullyPaid(t *testing.T) {
	f := newFixture(t)
	f.ledger.calc[testFolderID] = &ledger.PaymentCalc{
		Total:     decimal.NewFromInt(1000),
		Paid:      decimal.NewFromInt(1000),
		Pending:   decimal.NewFromFloat(0.004),
		FullyPaid: true,
	}

	pctx, err := f.svc.DescribeForUser(context.Background(), testActor, testFolderID)
	require.NoError(t, err)

	// residual float noise below one cent is not payable
	assert.False(t, pctx.CanPay)
	assert.False(t, pctx.Actions[model.PayTypeBalance].Allowed)
}

func TestDescribeForUserCachesContext(t *testing.T) {
	f := newFixture(t)
	repo := newFakeIntentRepo()
	policy := ledger.NewStandardDepositPolicy(30, 30)
	svc := NewPaymentService(repo, f.ledger, policy, f.stripe, f.redsys, f.cache, nil, zerolog.Nop(), Options{
		ContextCacheTTL: time.Minute,
	})

	_, err := svc.DescribeForUser(context.Background(), testActor, testFolderID)
	require.NoError(t, err)

	// second read hits the cache even if the ledger starts failing
	f.ledger.calcErr = errors.New("giav down")
	pctx, err := svc.DescribeForUser(context.Background(), testActor, testFolderID)
	require.NoError(t, err)
	assert.True(t, pctx.Pending.Equal(decimal.NewFromInt(1000)))
}

// =====================================================
// REDIRECT RAIL
// =====================================================

func TestStartRedirectPayment(t *testing.T) {
	f := newFixture(t)

	url, err := f.svc.StartRedirectPayment(context.Background(), testActor, model.StartPaymentRequest{
		ExpedienteID: testFolderID,
		Type:         model.PayTypeDeposit,
	})
	require.NoError(t, err)
	assert.Contains(t, url, "mode=deposit")

	url, err = f.svc.StartRedirectPayment(context.Background(), testActor, model.StartPaymentRequest{
		ExpedienteID: testFolderID,
		Type:         model.PayTypeBalance,
	})
	require.NoError(t, err)
	// the redirect rail calls full settlement "full", not "balance"
	assert.Contains(t, url, "mode=full")
}

func TestStartRedirectPaymentNoURL(t *testing.T) {
	f := newFixture(t)
	f.redsys.payURL = ""

	_, err := f.svc.StartRedirectPayment(context.Background(), testActor, model.StartPaymentRequest{
		ExpedienteID: testFolderID,
		Type:         model.PayTypeBalance,
	})
	assert.Equal(t, model.ErrCodeNoRedirect, payErrCode(t, err))
}

func TestStartRedirectPaymentInvalidType(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.StartRedirectPayment(context.Background(), testActor, model.StartPaymentRequest{
		ExpedienteID: testFolderID,
		Type:         "everything",
	})
	assert.Equal(t, model.ErrCodeInvalidType, payErrCode(t, err))
}

// =====================================================
// BANK TRANSFER RAIL
// =====================================================

func TestStartBankTransferDeposit(t *testing.T) {
	f := newFixture(t)

	resp, err := f.svc.StartBankTransfer(context.Background(), testActor, model.StartPaymentRequest{
		ExpedienteID: testFolderID,
		Type:         model.PayTypeDeposit,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, model.IntentStatusPending, resp.Status)
	assert.Equal(t, model.ProviderStripe, resp.Provider)
	assert.Equal(t, model.MethodBankTransfer, resp.Method)
	// amount comes from the server-side calculation, never the client
	assert.True(t, resp.Amount.Equal(decimal.NewFromInt(300)))
	assert.Equal(t, "ES9121000418450200051332", resp.Instructions.IBAN)

	stored, err := f.repo.GetByToken(context.Background(), resp.Token)
	require.NoError(t, err)
	assert.Equal(t, model.IntentStatusPending, stored.Status)
	assert.Equal(t, "pi_123", stored.Payload.StripePaymentIntentID)
	assert.Equal(t, model.PayTypeDeposit, stored.Payload.Mode)
	assert.Equal(t, testClientID, stored.ClientID)
}

func TestStartBankTransferDepositNotAllowed(t *testing.T) {
	f := newFixture(t)
	f.ledger.calc[testFolderID] = &ledger.PaymentCalc{
		Total:   decimal.NewFromInt(1000),
		Paid:    decimal.NewFromInt(500),
		Pending: decimal.NewFromInt(500),
	}

	_, err := f.svc.StartBankTransfer(context.Background(), testActor, model.StartPaymentRequest{
		ExpedienteID: testFolderID,
		Type:         model.PayTypeDeposit,
	})
	assert.Equal(t, model.ErrCodeDepositNotAllowed, payErrCode(t, err))
	assert.Zero(t, f.stripe.calls)
}

func TestStartBankTransferStripeFailureMarksIntentFailed(t *testing.T) {
	f := newFixture(t)
	f.stripe.createErr = model.NewStripeError(errors.New("api down"))

	_, err := f.svc.StartBankTransfer(context.Background(), testActor, model.StartPaymentRequest{
		ExpedienteID: testFolderID,
		Type:         model.PayTypeBalance,
	})
	assert.Equal(t, model.ErrCodeStripeError, payErrCode(t, err))

	// the failed attempt stays as an audit row
	require.Len(t, f.repo.intents, 1)
	for _, intent := range f.repo.intents {
		assert.Equal(t, model.IntentStatusFailed, intent.Status)
		assert.Contains(t, intent.Payload.Error, "api down")
	}
}

func TestStartBankTransferStripeNotConfigured(t *testing.T) {
	f := newFixture(t)
	f.stripe.createErr = model.NewStripeMissingError()

	_, err := f.svc.StartBankTransfer(context.Background(), testActor, model.StartPaymentRequest{
		ExpedienteID: testFolderID,
		Type:         model.PayTypeBalance,
	})
	assert.Equal(t, model.ErrCodeStripeMissing, payErrCode(t, err))
}

// =====================================================
// INTENT LOOKUP
// =====================================================

func TestGetIntentByToken(t *testing.T) {
	f := newFixture(t)

	resp, err := f.svc.StartBankTransfer(context.Background(), testActor, model.StartPaymentRequest{
		ExpedienteID: testFolderID,
		Type:         model.PayTypeDeposit,
	})
	require.NoError(t, err)

	status, err := f.svc.GetIntentByToken(context.Background(), testActor, resp.Token)
	require.NoError(t, err)
	assert.Equal(t, model.IntentStatusPending, status.Status)
	require.NotNil(t, status.Instructions)
	assert.Equal(t, "REF-001", status.Instructions.Reference)
}

func TestGetIntentByTokenForeignClient(t *testing.T) {
	f := newFixture(t)

	resp, err := f.svc.StartBankTransfer(context.Background(), testActor, model.StartPaymentRequest{
		ExpedienteID: testFolderID,
		Type:         model.PayTypeDeposit,
	})
	require.NoError(t, err)

	// a different client sees not-found, not forbidden
	_, err = f.svc.GetIntentByToken(context.Background(), model.Actor{UserID: 5, ClientID: 99}, resp.Token)
	assert.Equal(t, model.ErrCodeIntentNotFound, payErrCode(t, err))
}

func TestGetIntentByTokenUnknown(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.GetIntentByToken(context.Background(), testActor, "nope")
	assert.Equal(t, model.ErrCodeIntentNotFound, payErrCode(t, err))
}

// =====================================================
// WEBHOOK RECONCILIATION
// =====================================================

func startPendingIntent(t *testing.T, f *fixture) string {
	t.Helper()
	resp, err := f.svc.StartBankTransfer(context.Background(), testActor, model.StartPaymentRequest{
		ExpedienteID: testFolderID,
		Type:         model.PayTypeDeposit,
	})
	require.NoError(t, err)
	return resp.Token
}

func TestProcessStripeWebhookPaid(t *testing.T) {
	f := newFixture(t)
	tok := startPendingIntent(t, f)
	body := f.webhookBody(t, "evt_1", "succeeded", tok)

	result := f.svc.ProcessStripeWebhook(context.Background(), body, validSig)

	assert.Equal(t, http.StatusOK, result.HTTPStatus)
	assert.True(t, result.Ack.Ok)
	assert.Equal(t, model.IntentStatusPaid, result.Ack.Status)

	stored, err := f.repo.GetByToken(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, model.IntentStatusPaid, stored.Status)
	assert.Equal(t, "evt_1", stored.Payload.StripeEventLastID)
	assert.Equal(t, "succeeded", stored.Payload.StripePaymentIntentStatus)
	assert.NotNil(t, stored.CollectionRecordedAt)

	// the cobro landed in the ledger exactly once, keyed by token
	rec, ok := f.ledger.collections[tok]
	require.True(t, ok)
	assert.True(t, rec.Amount.Equal(decimal.NewFromInt(300)))
	assert.Equal(t, testFolderID, rec.FolderID)
}

func TestProcessStripeWebhookDuplicateEvent(t *testing.T) {
	f := newFixture(t)
	tok := startPendingIntent(t, f)
	body := f.webhookBody(t, "evt_1", "succeeded", tok)

	first := f.svc.ProcessStripeWebhook(context.Background(), body, validSig)
	require.Equal(t, http.StatusOK, first.HTTPStatus)

	second := f.svc.ProcessStripeWebhook(context.Background(), body, validSig)
	assert.Equal(t, http.StatusOK, second.HTTPStatus)
	assert.True(t, second.Ack.Ok)
	assert.Equal(t, "duplicate", second.Ack.Status)
}

func TestProcessStripeWebhookSecondEventOnPaidIntent(t *testing.T) {
	f := newFixture(t)
	tok := startPendingIntent(t, f)

	first := f.svc.ProcessStripeWebhook(context.Background(), f.webhookBody(t, "evt_1", "succeeded", tok), validSig)
	require.Equal(t, http.StatusOK, first.HTTPStatus)
	firstRec := f.ledger.collections[tok]

	// a different event id for an already paid intent acknowledges without
	// touching the ledger again
	second := f.svc.ProcessStripeWebhook(context.Background(), f.webhookBody(t, "evt_2", "succeeded", tok), validSig)
	assert.Equal(t, http.StatusOK, second.HTTPStatus)
	assert.True(t, second.Ack.Ok)
	assert.Equal(t, "already_processed", second.Ack.Status)
	assert.Equal(t, firstRec, f.ledger.collections[tok])
}

func TestProcessStripeWebhookInvalidSignature(t *testing.T) {
	f := newFixture(t)
	tok := startPendingIntent(t, f)
	body := f.webhookBody(t, "evt_1", "succeeded", tok)

	result := f.svc.ProcessStripeWebhook(context.Background(), body, "t=123,v1=garbage")

	assert.Equal(t, http.StatusBadRequest, result.HTTPStatus)
	assert.False(t, result.Ack.Ok)
	assert.Equal(t, model.ErrCodeInvalidSignature, result.Ack.Code)

	stored, err := f.repo.GetByToken(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, model.IntentStatusPending, stored.Status)
}

func TestProcessStripeWebhookNoSecret(t *testing.T) {
	f := newFixture(t)
	f.stripe.webhookConfigured = false

	result := f.svc.ProcessStripeWebhook(context.Background(), []byte(`{}`), validSig)
	assert.Equal(t, http.StatusBadGateway, result.HTTPStatus)
	assert.Equal(t, model.ErrCodeStripeNoSecret, result.Ack.Code)
}

func TestProcessStripeWebhookIgnoredEventType(t *testing.T) {
	f := newFixture(t)
	body, _ := json.Marshal(map[string]interface{}{
		"id":   "evt_9",
		"type": "payment_intent.created",
	})

	result := f.svc.ProcessStripeWebhook(context.Background(), body, validSig)
	assert.Equal(t, http.StatusOK, result.HTTPStatus)
	assert.True(t, result.Ack.Ok)
	assert.Equal(t, "ignored", result.Ack.Status)
}

func TestProcessStripeWebhookBadPayloads(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		body []byte
		code string
	}{
		{"not json", []byte("{nope"), model.ErrCodeInvalidPayload},
		{"no object", mustJSON(map[string]interface{}{
			"id": "evt_1", "type": model.StripeEventPaymentSucceeded,
		}), model.ErrCodeNoObject},
		{"no token", mustJSON(map[string]interface{}{
			"id": "evt_1", "type": model.StripeEventPaymentSucceeded,
			"data": map[string]interface{}{"object": map[string]interface{}{"id": "pi_1"}},
		}), model.ErrCodeNoToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := f.svc.ProcessStripeWebhook(context.Background(), tt.body, validSig)
			assert.Equal(t, http.StatusBadRequest, result.HTTPStatus)
			assert.Equal(t, tt.code, result.Ack.Code)
		})
	}
}

func TestProcessStripeWebhookUnknownToken(t *testing.T) {
	f := newFixture(t)
	body := f.webhookBody(t, "evt_1", "succeeded", "tok_unknown")

	result := f.svc.ProcessStripeWebhook(context.Background(), body, validSig)
	assert.Equal(t, http.StatusNotFound, result.HTTPStatus)
	assert.Equal(t, model.ErrCodeIntentNotFound, result.Ack.Code)
}

func TestProcessStripeWebhookStoreOutage(t *testing.T) {
	f := newFixture(t)
	f.repo.getErr = errors.New("connection refused")
	body := f.webhookBody(t, "evt_1", "succeeded", "tok_any")

	result := f.svc.ProcessStripeWebhook(context.Background(), body, validSig)
	assert.Equal(t, http.StatusBadGateway, result.HTTPStatus)
	assert.Equal(t, model.ErrCodeIntentLookupFailed, result.Ack.Code)
}

func TestProcessStripeWebhookLedgerFailureStillAcks(t *testing.T) {
	f := newFixture(t)
	tok := startPendingIntent(t, f)
	f.ledger.recordErr = errors.New("giav down")
	body := f.webhookBody(t, "evt_1", "succeeded", tok)

	result := f.svc.ProcessStripeWebhook(context.Background(), body, validSig)

	// the acknowledgment never waits on the ledger
	assert.Equal(t, http.StatusOK, result.HTTPStatus)
	assert.True(t, result.Ack.Ok)

	stored, err := f.repo.GetByToken(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, model.IntentStatusPaid, stored.Status)
	assert.Nil(t, stored.CollectionRecordedAt)

	// a background retry got queued
	assert.Equal(t, []int64{stored.ID}, f.enqueuer.intentIDs)
}

// =====================================================
// LEDGER WRITE-BACK
// =====================================================

func TestRecordCollectionIdempotent(t *testing.T) {
	f := newFixture(t)
	tok := startPendingIntent(t, f)
	f.svc.ProcessStripeWebhook(context.Background(), f.webhookBody(t, "evt_1", "succeeded", tok), validSig)

	stored, err := f.repo.GetByToken(context.Background(), tok)
	require.NoError(t, err)

	// repeat call is a no-op once recorded
	require.NoError(t, f.svc.RecordCollection(context.Background(), stored.ID))
	assert.Len(t, f.ledger.collections, 1)
}

func TestRecordCollectionSkipsExistingCobro(t *testing.T) {
	f := newFixture(t)
	tok := startPendingIntent(t, f)
	f.ledger.recordErr = errors.New("giav down")
	f.svc.ProcessStripeWebhook(context.Background(), f.webhookBody(t, "evt_1", "succeeded", tok), validSig)

	stored, err := f.repo.GetByToken(context.Background(), tok)
	require.NoError(t, err)

	// the cobro appeared out of band (e.g. a concurrent worker run)
	f.ledger.recordErr = nil
	f.ledger.collections[tok] = ledger.CollectionRecord{IntentToken: tok}

	require.NoError(t, f.svc.RecordCollection(context.Background(), stored.ID))

	refreshed, err := f.repo.GetByID(context.Background(), stored.ID)
	require.NoError(t, err)
	assert.NotNil(t, refreshed.CollectionRecordedAt)
}

func TestRecordCollectionRejectsUnpaidIntent(t *testing.T) {
	f := newFixture(t)
	tok := startPendingIntent(t, f)

	stored, err := f.repo.GetByToken(context.Background(), tok)
	require.NoError(t, err)

	err = f.svc.RecordCollection(context.Background(), stored.ID)
	assert.ErrorIs(t, err, model.ErrIntentNotPaid)
	assert.Empty(t, f.ledger.collections)
}

func TestSweepPendingCollections(t *testing.T) {
	f := newFixture(t)
	tok := startPendingIntent(t, f)
	f.ledger.recordErr = errors.New("giav down")
	f.svc.ProcessStripeWebhook(context.Background(), f.webhookBody(t, "evt_1", "succeeded", tok), validSig)

	f.ledger.recordErr = nil
	recorded, err := f.svc.SweepPendingCollections(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, recorded)
	assert.Len(t, f.ledger.collections, 1)

	// nothing left to sweep
	recorded, err = f.svc.SweepPendingCollections(context.Background(), 10)
	require.NoError(t, err)
	assert.Zero(t, recorded)
}

// =====================================================
// METHODS
// =====================================================

func TestAvailableMethods(t *testing.T) {
	f := newFixture(t)

	methods := f.svc.AvailableMethods()
	require.Len(t, methods, 2)
	assert.Equal(t, model.MethodCard, methods[0].ID)
	assert.Equal(t, model.ProviderRedsys, methods[0].Provider)
	assert.Equal(t, model.MethodBankTransfer, methods[1].ID)
	assert.Equal(t, model.ProviderStripe, methods[1].Provider)
}

func TestAvailableMethodsWithoutStripe(t *testing.T) {
	f := newFixture(t)
	f.stripe.keyConfigured = false
	f.redsys.payURL = ""

	// card is listed no matter what; bank transfer needs a Stripe key
	methods := f.svc.AvailableMethods()
	require.Len(t, methods, 1)
	assert.Equal(t, model.MethodCard, methods[0].ID)
}

func mustJSON(v interface{}) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
