package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"casanova-portal/internal/domains/payment/gateway"
	"casanova-portal/internal/domains/payment/ledger"
	"casanova-portal/internal/domains/payment/model"
	"casanova-portal/internal/domains/payment/repository"
	"casanova-portal/pkg/cache"
	"casanova-portal/pkg/token"
)

// Options tunes the service without touching wiring.
type Options struct {
	// ContextCacheTTL bounds how stale a cached payment context may be.
	// Zero disables caching.
	ContextCacheTTL time.Duration

	// LedgerWriteTimeout bounds the inline cobro write attempted right after
	// a webhook marks an intent paid.
	LedgerWriteTimeout time.Duration
}

func (o Options) ledgerWriteTimeout() time.Duration {
	if o.LedgerWriteTimeout <= 0 {
		return 10 * time.Second
	}
	return o.LedgerWriteTimeout
}

type paymentService struct {
	repo          repository.IntentRepository
	ledger        ledger.Ledger
	depositPolicy ledger.DepositPolicy
	stripe        gateway.StripeGateway
	redsys        gateway.RedsysGateway
	cache         cache.Cache
	enqueuer      CollectionEnqueuer
	logger        zerolog.Logger
	opts          Options
}

func NewPaymentService(
	repo repository.IntentRepository,
	ldg ledger.Ledger,
	depositPolicy ledger.DepositPolicy,
	stripe gateway.StripeGateway,
	redsys gateway.RedsysGateway,
	c cache.Cache,
	enqueuer CollectionEnqueuer,
	logger zerolog.Logger,
	opts Options,
) PaymentService {
	return &paymentService{
		repo:          repo,
		ledger:        ldg,
		depositPolicy: depositPolicy,
		stripe:        stripe,
		redsys:        redsys,
		cache:         c,
		enqueuer:      enqueuer,
		logger:        logger.With().Str("service", "payment").Logger(),
		opts:          opts,
	}
}

// =====================================================
// PAYMENT CONTEXT
// =====================================================

func contextCacheKey(clientID, folderID int64) string {
	return fmt.Sprintf("payments:context:%d:%d", clientID, folderID)
}

func (s *paymentService) DescribeForUser(ctx context.Context, actor model.Actor, folderID int64) (*model.PaymentContext, error) {
	// Step 1: the actor must be linked to a back-office client
	if actor.ClientID <= 0 {
		return nil, model.NewNoClientError()
	}
	if folderID <= 0 {
		return nil, model.NewInvalidFolderError(folderID)
	}

	// Step 2: cache lookup
	cacheKey := contextCacheKey(actor.ClientID, folderID)
	if s.opts.ContextCacheTTL > 0 {
		var cached model.PaymentContext
		if found, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && found {
			return &cached, nil
		}
	}

	// Step 3: ownership check against the ledger
	owns, err := s.ledger.FolderBelongsToClient(ctx, folderID, actor.ClientID)
	if err != nil {
		return nil, model.NewLedgerError(model.ErrCodeLedgerUnavailable, err)
	}
	if !owns {
		return nil, model.NewPermissionsError(folderID)
	}

	// Step 4: reservations
	reservations, err := s.ledger.ReservationsForFolder(ctx, folderID, actor.ClientID)
	if err != nil {
		return nil, model.NewLedgerError(model.ErrCodeReservationsError, err)
	}
	if len(reservations) == 0 {
		return nil, model.NewNoReservationsError()
	}

	// Step 5: ledger-side payment calculation
	calc, err := s.ledger.CalcFolderPayment(ctx, folderID, actor.ClientID, reservations)
	if err != nil {
		return nil, model.NewLedgerError(model.ErrCodeCalcFailed, err)
	}

	pctx := s.buildContext(actor, folderID, reservations, calc)

	// Step 6: cache the result
	if s.opts.ContextCacheTTL > 0 {
		if err := s.cache.Set(ctx, cacheKey, pctx, s.opts.ContextCacheTTL); err != nil {
			s.logger.Warn().Err(err).Str("key", cacheKey).Msg("Failed to cache payment context")
		}
	}

	return pctx, nil
}

// buildContext applies the eligibility rules. Money comparisons tolerate
// AmountEpsilon of noise from upstream float arithmetic.
func (s *paymentService) buildContext(actor model.Actor, folderID int64, reservations []ledger.Reservation, calc *ledger.PaymentCalc) *model.PaymentContext {
	pending := calc.Pending.Round(2)
	paid := calc.Paid.Round(2)

	// Deposit: nothing paid yet, trip far enough away, and the deposit must
	// leave a real remainder (otherwise the balance action covers it).
	depositAmount := decimal.Zero
	depositAllowed := false
	if paid.LessThanOrEqual(model.AmountEpsilon) && s.depositPolicy.DepositAllowed(reservations) {
		depositAmount = s.depositPolicy.DepositAmount(pending, folderID)
		depositAllowed = depositAmount.Add(model.AmountEpsilon).LessThan(pending)
	}
	if !depositAllowed {
		depositAmount = decimal.Zero
	}

	// Balance: anything meaningfully pending can be settled in full.
	balanceAllowed := pending.GreaterThan(model.AmountEpsilon)
	balanceAmount := decimal.Zero
	if balanceAllowed {
		balanceAmount = pending
	}

	return &model.PaymentContext{
		UserID:       actor.UserID,
		ClientID:     actor.ClientID,
		ExpedienteID: folderID,
		Total:        calc.Total.Round(2),
		Paid:         paid,
		Pending:      pending,
		Currency:     model.DefaultCurrency,
		CanPay:       depositAllowed || balanceAllowed,
		PayURL:       s.redsys.FolderPayURL(folderID),
		Actions: map[string]model.PaymentAction{
			model.PayTypeDeposit: {Allowed: depositAllowed, Amount: depositAmount},
			model.PayTypeBalance: {Allowed: balanceAllowed, Amount: balanceAmount},
		},
	}
}

func (s *paymentService) invalidateContext(ctx context.Context, clientID, folderID int64) {
	if err := s.cache.Delete(ctx, contextCacheKey(clientID, folderID)); err != nil {
		s.logger.Warn().Err(err).Int64("folder_id", folderID).Msg("Failed to invalidate payment context cache")
	}
}

// =====================================================
// REDIRECT RAIL
// =====================================================

func (s *paymentService) StartRedirectPayment(ctx context.Context, actor model.Actor, req model.StartPaymentRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", model.NewPaymentError(model.ErrCodeInvalidType, err.Error(), err)
	}

	pctx, err := s.DescribeForUser(ctx, actor, req.ExpedienteID)
	if err != nil {
		return "", err
	}

	action, ok := pctx.Actions[req.Type]
	if !ok {
		return "", model.NewInvalidPayTypeError(req.Type)
	}
	if !action.Allowed {
		return "", model.NewActionNotAllowedError(req.Type)
	}

	if pctx.PayURL == "" {
		return "", model.NewPaymentError(model.ErrCodeNoRedirect, "Redirect payment is not available", nil)
	}

	// The redirect page distinguishes partial from full payment by mode.
	mode := model.ModeFull
	if req.Type == model.PayTypeDeposit {
		mode = model.ModeDeposit
	}
	return fmt.Sprintf("%s&mode=%s", pctx.PayURL, mode), nil
}

// =====================================================
// BANK TRANSFER RAIL
// =====================================================

func (s *paymentService) StartBankTransfer(ctx context.Context, actor model.Actor, req model.StartPaymentRequest) (*model.BankTransferResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, model.NewPaymentError(model.ErrCodeInvalidType, err.Error(), err)
	}

	// Step 1: resolve the payment context; it authorizes the actor and fixes
	// the amount server-side. Client-supplied amounts are never trusted.
	pctx, err := s.DescribeForUser(ctx, actor, req.ExpedienteID)
	if err != nil {
		return nil, err
	}

	action, ok := pctx.Actions[req.Type]
	if !ok {
		return nil, model.NewInvalidPayTypeError(req.Type)
	}
	if !action.Allowed {
		return nil, model.NewActionNotAllowedError(req.Type)
	}
	amount := action.Amount.Round(2)
	if amount.LessThanOrEqual(model.AmountEpsilon) {
		return nil, model.NewPaymentError(model.ErrCodeInvalidAmount, "Amount to pay is not positive", nil)
	}

	// Step 2: persist the intent before any provider call so a provider
	// failure still leaves an auditable row.
	tok, err := token.New()
	if err != nil {
		return nil, model.NewPaymentError(model.ErrCodeIntentCreateFailed, "Could not create payment intent", err)
	}
	intent := &model.PaymentIntent{
		Token:    tok,
		UserID:   actor.UserID,
		ClientID: actor.ClientID,
		FolderID: req.ExpedienteID,
		Amount:   amount,
		Currency: pctx.Currency,
		Status:   model.IntentStatusCreated,
		Payload: model.IntentPayload{
			Provider: model.ProviderStripe,
			Method:   model.MethodBankTransfer,
			Mode:     req.Type,
		},
	}
	if err := s.repo.Create(ctx, intent); err != nil {
		return nil, model.NewPaymentError(model.ErrCodeIntentCreateFailed, "Could not create payment intent", err)
	}

	// Step 3: create the provider-side PaymentIntent.
	resp, err := s.stripe.CreateBankTransferIntent(ctx, gateway.BankTransferIntentRequest{
		AmountCents: amount.Mul(decimal.NewFromInt(100)).IntPart(),
		Currency:    pctx.Currency,
		Description: fmt.Sprintf("Expediente %d (%s)", req.ExpedienteID, req.Type),
		Metadata: map[string]string{
			"casanova_token": tok,
			"expediente_id":  fmt.Sprintf("%d", req.ExpedienteID),
			"client_id":      fmt.Sprintf("%d", actor.ClientID),
			"pay_type":       req.Type,
		},
	})
	if err != nil {
		s.failIntent(ctx, intent, err)
		var payErr *model.PaymentError
		if errors.As(err, &payErr) {
			return nil, payErr
		}
		return nil, model.NewStripeError(err)
	}

	// Step 4: move to pending with the full provider snapshot.
	payload := intent.Payload
	payload.StripePaymentIntentID = resp.ID
	payload.StripePaymentIntentStatus = resp.Status
	payload.Instructions = &resp.Instructions
	status := model.IntentStatusPending
	if err := s.repo.Update(ctx, intent.ID, repository.IntentUpdate{Status: &status, Payload: &payload}); err != nil {
		// The provider intent exists; the webhook will still reconcile by
		// token, so surface the instructions anyway.
		s.logger.Error().Err(err).Int64("intent_id", intent.ID).Msg("Failed to move intent to pending")
	}

	s.logger.Info().
		Int64("intent_id", intent.ID).
		Int64("folder_id", req.ExpedienteID).
		Str("pay_type", req.Type).
		Str("amount", amount.String()).
		Msg("Bank transfer started")

	return &model.BankTransferResponse{
		Token:        tok,
		IntentID:     intent.ID,
		Provider:     model.ProviderStripe,
		Method:       model.MethodBankTransfer,
		Status:       model.IntentStatusPending,
		Amount:       amount,
		Currency:     pctx.Currency,
		Instructions: resp.Instructions,
	}, nil
}

// failIntent records a provider failure on the intent. Best effort: the
// caller's error has already been decided.
func (s *paymentService) failIntent(ctx context.Context, intent *model.PaymentIntent, cause error) {
	payload := intent.Payload
	payload.Error = cause.Error()
	status := model.IntentStatusFailed
	if err := s.repo.Update(ctx, intent.ID, repository.IntentUpdate{Status: &status, Payload: &payload}); err != nil {
		s.logger.Error().Err(err).Int64("intent_id", intent.ID).Msg("Failed to mark intent failed")
	}
}

// =====================================================
// INTENT LOOKUP
// =====================================================

func (s *paymentService) GetIntentByToken(ctx context.Context, actor model.Actor, tok string) (*model.IntentStatusResponse, error) {
	if tok == "" {
		return nil, model.NewIntentNotFoundError(tok)
	}

	intent, err := s.repo.GetByToken(ctx, tok)
	if err != nil {
		if errors.Is(err, model.ErrIntentNotFound) {
			return nil, model.NewIntentNotFoundError(tok)
		}
		return nil, model.NewPaymentError(model.ErrCodeIntentLookupFailed, "Could not look up payment intent", err)
	}

	// Ownership failures are indistinguishable from missing tokens so the
	// endpoint cannot be used to probe other clients' intents.
	if intent.ClientID != actor.ClientID {
		return nil, model.NewIntentNotFoundError(tok)
	}

	return &model.IntentStatusResponse{
		Token:        intent.Token,
		Provider:     intent.Payload.Provider,
		Method:       intent.Payload.Method,
		Status:       intent.Status,
		Amount:       intent.Amount,
		Currency:     intent.Currency,
		Instructions: intent.Payload.Instructions,
		CreatedAt:    intent.CreatedAt,
		UpdatedAt:    intent.UpdatedAt,
	}, nil
}

// AvailableMethods lists the offered rails. Card is always listed because the
// redirect page lives outside this service; bank transfer needs a Stripe key.
func (s *paymentService) AvailableMethods() []model.PaymentMethod {
	methods := []model.PaymentMethod{
		{
			ID:       model.MethodCard,
			Label:    "Tarjeta de crédito",
			Provider: model.ProviderRedsys,
		},
	}
	if s.stripe.IsConfigured() {
		methods = append(methods, model.PaymentMethod{
			ID:       model.MethodBankTransfer,
			Label:    "Transferencia bancaria",
			Provider: model.ProviderStripe,
		})
	}
	return methods
}

// =====================================================
// WEBHOOK RECONCILIATION
// =====================================================

type stripeEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object *stripeEventObject `json:"object"`
	} `json:"data"`
}

type stripeEventObject struct {
	ID       string            `json:"id"`
	Status   string            `json:"status"`
	Metadata map[string]string `json:"metadata"`
}

func (s *paymentService) ProcessStripeWebhook(ctx context.Context, body []byte, sigHeader string) *model.WebhookResult {
	// Step 1: receiver configuration. Without a secret nothing can be
	// trusted, and the provider should keep retrying until it is fixed.
	if !s.stripe.WebhookConfigured() {
		return model.WebhookFail(http.StatusBadGateway, model.ErrCodeStripeNoSecret)
	}

	// Step 2: signature over the raw body.
	if !s.stripe.VerifyWebhookSignature(body, sigHeader) {
		return model.WebhookFail(http.StatusBadRequest, model.ErrCodeInvalidSignature)
	}

	// Step 3: parse the event.
	var event stripeEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return model.WebhookFail(http.StatusBadRequest, model.ErrCodeInvalidPayload)
	}

	// Step 4: only successful payments reconcile; everything else is
	// acknowledged so the provider stops redelivering it.
	if event.Type != model.StripeEventPaymentSucceeded {
		return model.WebhookOK("ignored")
	}

	obj := event.Data.Object
	if obj == nil {
		return model.WebhookFail(http.StatusBadRequest, model.ErrCodeNoObject)
	}
	tok := obj.Metadata["casanova_token"]
	if tok == "" {
		return model.WebhookFail(http.StatusBadRequest, model.ErrCodeNoToken)
	}

	// Step 5: resolve the intent. A store outage answers 502 so the provider
	// redelivers once the store is back.
	intent, err := s.repo.GetByToken(ctx, tok)
	if err != nil {
		if errors.Is(err, model.ErrIntentNotFound) {
			return model.WebhookFail(http.StatusNotFound, model.ErrCodeIntentNotFound)
		}
		s.logger.Error().Err(err).Str("token", tok).Msg("Webhook intent lookup failed")
		return model.WebhookFail(http.StatusBadGateway, model.ErrCodeIntentLookupFailed)
	}

	// Step 6: per-intent event dedupe.
	if intent.Payload.StripeEventLastID == event.ID {
		return model.WebhookOK("duplicate")
	}

	// Step 7: conditional paid transition. Losing the race (or arriving on an
	// already terminal intent) acknowledges without side effects.
	payload := intent.Payload
	payload.StripePaymentIntentStatus = obj.Status
	payload.StripeEventLastID = event.ID
	if payload.StripePaymentIntentID == "" {
		payload.StripePaymentIntentID = obj.ID
	}
	transitioned, err := s.repo.MarkPaid(ctx, intent.ID, payload)
	if err != nil {
		s.logger.Error().Err(err).Int64("intent_id", intent.ID).Msg("Webhook paid transition failed")
		return model.WebhookFail(http.StatusBadGateway, model.ErrCodeIntentLookupFailed)
	}
	if !transitioned {
		return model.WebhookOK("already_processed")
	}

	s.logger.Info().
		Int64("intent_id", intent.ID).
		Str("event_id", event.ID).
		Str("stripe_payment_intent", payload.StripePaymentIntentID).
		Msg("Payment intent marked paid")

	s.invalidateContext(ctx, intent.ClientID, intent.FolderID)

	// Step 8: best-effort inline ledger write-back. The acknowledgment never
	// waits on the ledger; the sweep retries whatever fails here. Detached
	// from the request context so a client disconnect cannot abort it.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.ledgerWriteTimeout())
	defer cancel()
	if err := s.RecordCollection(writeCtx, intent.ID); err != nil {
		s.logger.Warn().Err(err).Int64("intent_id", intent.ID).Msg("Inline collection write-back failed, sweep will retry")
		if s.enqueuer != nil {
			if qErr := s.enqueuer.EnqueueRecordCollection(writeCtx, intent.ID); qErr != nil {
				s.logger.Warn().Err(qErr).Int64("intent_id", intent.ID).Msg("Failed to enqueue collection retry")
			}
		}
	}

	return model.WebhookOK(model.IntentStatusPaid)
}

// =====================================================
// LEDGER WRITE-BACK
// =====================================================

func (s *paymentService) RecordCollection(ctx context.Context, intentID int64) error {
	intent, err := s.repo.GetByID(ctx, intentID)
	if err != nil {
		return err
	}
	if intent.Status != model.IntentStatusPaid {
		return model.ErrIntentNotPaid
	}
	if intent.CollectionRecordedAt != nil {
		return nil
	}

	// The intent token rides along as the cobro reference, making the ledger
	// itself the dedupe authority across retries and process restarts.
	exists, err := s.ledger.HasCollection(ctx, intent.Token)
	if err != nil {
		return fmt.Errorf("check existing collection: %w", err)
	}
	if !exists {
		if err := s.ledger.RecordCollection(ctx, ledger.CollectionRecord{
			IntentToken: intent.Token,
			FolderID:    intent.FolderID,
			ClientID:    intent.ClientID,
			Amount:      intent.Amount,
			Currency:    intent.Currency,
			Provider:    intent.Payload.Provider,
			Method:      intent.Payload.Method,
			PaidAt:      intent.UpdatedAt,
		}); err != nil {
			return fmt.Errorf("record collection: %w", err)
		}
	}

	if err := s.repo.MarkCollectionRecorded(ctx, intent.ID); err != nil {
		return fmt.Errorf("mark collection recorded: %w", err)
	}

	s.logger.Info().
		Int64("intent_id", intent.ID).
		Int64("folder_id", intent.FolderID).
		Bool("already_in_ledger", exists).
		Msg("Collection recorded")
	return nil
}

func (s *paymentService) SweepPendingCollections(ctx context.Context, limit int) (int, error) {
	intents, err := s.repo.ListPaidPendingCollection(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("list pending collections: %w", err)
	}

	recorded := 0
	for _, intent := range intents {
		if err := s.RecordCollection(ctx, intent.ID); err != nil {
			s.logger.Warn().Err(err).Int64("intent_id", intent.ID).Msg("Collection sweep retry failed")
			continue
		}
		recorded++
	}
	return recorded, nil
}
