package paymentrequests

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tavolo-app/tavolo-backend/internal/balance"
	dbpkg "github.com/tavolo-app/tavolo-backend/pkg/db"
	"github.com/tavolo-app/tavolo-backend/pkg/db/models"
	"github.com/tavolo-app/tavolo-backend/pkg/enums"
	apperrors "github.com/tavolo-app/tavolo-backend/pkg/errors"
	"github.com/tavolo-app/tavolo-backend/pkg/logger"
	"github.com/tavolo-app/tavolo-backend/pkg/outbox"
	"github.com/tavolo-app/tavolo-backend/pkg/outbox/payloads"
)

// cooldownScope keys the per-merchant creation cooldown in Redis.
const cooldownScope = "payment-requests:create"

// BalanceService applies balance mutations inside the verification
// transaction.
type BalanceService interface {
	ApplyTx(ctx context.Context, tx *gorm.DB, params balance.AdjustParams) (*models.BalanceTransaction, error)
}

// SubscriptionService extends the paid period and re-evaluates health.
type SubscriptionService interface {
	ExtendPeriod(ctx context.Context, tx *gorm.DB, merchantID uuid.UUID, months int, paymentRequestID uuid.UUID) error
	Evaluate(ctx context.Context, merchantID uuid.UUID) (*models.MerchantSubscription, error)
}

// CooldownStore throttles request creation. A nil acquisition means the
// merchant is still inside the window.
type CooldownStore interface {
	AcquireCooldown(ctx context.Context, scope, id string, ttl time.Duration) (bool, error)
}

// BankDetails is the transfer destination snapshotted onto every request.
type BankDetails struct {
	Name          string
	AccountNumber string
	AccountName   string
}

// ServiceParams groups dependencies for the payment request workflow.
type ServiceParams struct {
	DB            *dbpkg.Client
	Repo          Repository
	Balances      BalanceService
	Subscriptions SubscriptionService
	Outbox        *outbox.Service
	Cooldowns     CooldownStore
	Logger        *logger.Logger

	Bank     BankDetails
	TTL      time.Duration
	Cooldown time.Duration
	Currency enums.Currency

	// Now overrides the clock, used by tests.
	Now func() time.Time
}

// Service drives the bank-transfer payment workflow.
type Service struct {
	db        *dbpkg.Client
	repo      Repository
	balances  BalanceService
	subs      SubscriptionService
	outbox    *outbox.Service
	cooldowns CooldownStore
	logg      *logger.Logger
	bank      BankDetails
	ttl       time.Duration
	cooldown  time.Duration
	currency  enums.Currency
	now       func() time.Time
}

// CreateParams describes a new payment request.
type CreateParams struct {
	MerchantID      uuid.UUID
	Type            enums.PaymentRequestType
	Amount          decimal.Decimal
	MonthsRequested int
	TransferNotes   *string
}

// ConfirmParams carries the merchant's transfer evidence.
type ConfirmParams struct {
	TransferProofURL *string
	TransferNotes    *string
}

// NewService builds a payment request service.
func NewService(params ServiceParams) (*Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("db client is required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("repo is required")
	}
	if params.Balances == nil {
		return nil, fmt.Errorf("balance service is required")
	}
	if params.Subscriptions == nil {
		return nil, fmt.Errorf("subscription service is required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service is required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	currency := params.Currency
	if currency == "" {
		currency = enums.CurrencyUSD
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		db:        params.DB,
		repo:      params.Repo,
		balances:  params.Balances,
		subs:      params.Subscriptions,
		outbox:    params.Outbox,
		cooldowns: params.Cooldowns,
		logg:      params.Logger,
		bank:      params.Bank,
		ttl:       ttl,
		cooldown:  params.Cooldown,
		currency:  currency,
		now:       now,
	}, nil
}

// Create opens a new payment request. One active request per merchant is
// enforced twice: an application check for a friendly error and the partial
// unique index for the concurrent window.
func (s *Service) Create(ctx context.Context, params CreateParams) (*models.PaymentRequest, error) {
	if params.MerchantID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "merchant id is required")
	}
	if !params.Type.IsValid() {
		return nil, apperrors.New(apperrors.CodeValidation, fmt.Sprintf("invalid payment request type %q", params.Type))
	}
	if !params.Amount.IsPositive() {
		return nil, apperrors.New(apperrors.CodeValidation, "amount must be positive")
	}
	if params.Type == enums.PaymentRequestTypeMonthlyRenewal && params.MonthsRequested < 1 {
		return nil, apperrors.New(apperrors.CodeValidation, "months requested must be at least 1")
	}
	if params.Type == enums.PaymentRequestTypeDepositTopup && params.MonthsRequested != 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "months requested only applies to monthly renewals")
	}

	if s.cooldowns != nil && s.cooldown > 0 {
		acquired, err := s.cooldowns.AcquireCooldown(ctx, cooldownScope, params.MerchantID.String(), s.cooldown)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeDependency, err, "checking creation cooldown")
		}
		if !acquired {
			return nil, apperrors.New(apperrors.CodeRateLimit, "please wait before creating another payment request")
		}
	}

	now := s.now().UTC()
	existing, err := s.repo.GetActive(ctx, params.MerchantID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "checking active request")
	}
	if existing != nil {
		if EffectiveStatus(existing.Status, existing.ExpiresAt, now) == enums.PaymentRequestStatusExpired {
			// The previous request lapsed; free the slot before creating.
			if err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
				return s.expireTx(ctx, tx, existing.ID)
			}); err != nil {
				return nil, err
			}
		} else {
			return nil, apperrors.New(apperrors.CodeConflict, "an active payment request already exists")
		}
	}

	request := &models.PaymentRequest{
		MerchantID:        params.MerchantID,
		Type:              params.Type,
		Status:            enums.PaymentRequestStatusPending,
		Amount:            params.Amount,
		Currency:          s.currency,
		MonthsRequested:   params.MonthsRequested,
		BankName:          s.bank.Name,
		BankAccountNumber: s.bank.AccountNumber,
		BankAccountName:   s.bank.AccountName,
		TransferNotes:     params.TransferNotes,
		ExpiresAt:         now.Add(s.ttl),
	}
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, request); err != nil {
			if dbpkg.IsUniqueViolation(err, "ux_payment_requests_active_merchant") {
				return apperrors.New(apperrors.CodeConflict, "an active payment request already exists")
			}
			return apperrors.Wrap(apperrors.CodeInternal, err, "creating payment request")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"merchant_id":        params.MerchantID.String(),
			"payment_request_id": request.ID.String(),
			"type":               params.Type.String(),
			"amount":             params.Amount.String(),
		})
		s.logg.Info(logCtx, "payment request created")
	}
	return request, nil
}

// Confirm records the merchant's claim that the transfer was sent.
func (s *Service) Confirm(ctx context.Context, merchantID, requestID uuid.UUID, params ConfirmParams) (*models.PaymentRequest, error) {
	var request *models.PaymentRequest
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		row, err := s.lockOwned(ctx, tx, merchantID, requestID)
		if err != nil {
			return err
		}
		if err := s.guardTransition(ctx, tx, row, enums.PaymentRequestStatusConfirmed); err != nil {
			return err
		}

		now := s.now().UTC()
		row.Status = enums.PaymentRequestStatusConfirmed
		row.ConfirmedAt = &now
		if params.TransferProofURL != nil {
			row.TransferProofURL = params.TransferProofURL
		}
		if params.TransferNotes != nil {
			row.TransferNotes = params.TransferNotes
		}
		if err := s.repo.WithTx(tx).Save(ctx, row); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "saving payment request")
		}
		request = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}

// Verify is the admin approval. The balance credit (deposit top-up) or
// period extension (monthly renewal) shares the verification transaction, so
// a crash cannot leave a verified-but-uncredited request; a retry after the
// commit hits the FSM and is rejected without a second credit.
func (s *Service) Verify(ctx context.Context, requestID, adminUserID uuid.UUID) (*models.PaymentRequest, error) {
	if adminUserID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "acting user id is required")
	}
	var request *models.PaymentRequest
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		row, err := s.lock(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if err := s.guardTransition(ctx, tx, row, enums.PaymentRequestStatusVerified); err != nil {
			return err
		}

		now := s.now().UTC()
		row.Status = enums.PaymentRequestStatusVerified
		row.ProcessedAt = &now
		row.ProcessedByUserID = &adminUserID
		if err := s.repo.WithTx(tx).Save(ctx, row); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "saving payment request")
		}

		switch row.Type {
		case enums.PaymentRequestTypeDepositTopup:
			description := "Bank transfer top-up"
			requestRef := row.ID
			_, err := s.balances.ApplyTx(ctx, tx, balance.AdjustParams{
				MerchantID:       row.MerchantID,
				Amount:           row.Amount,
				Type:             enums.BalanceTransactionTypeDeposit,
				Description:      description,
				PaymentRequestID: &requestRef,
				ActingUserID:     &adminUserID,
			})
			if err != nil {
				return err
			}
		case enums.PaymentRequestTypeMonthlyRenewal:
			if err := s.subs.ExtendPeriod(ctx, tx, row.MerchantID, row.MonthsRequested, row.ID); err != nil {
				return err
			}
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventPaymentVerified,
			AggregateType: enums.AggregatePaymentRequest,
			AggregateID:   row.ID,
			Version:       1,
			OccurredAt:    now,
			Actor:         &outbox.ActorRef{UserID: adminUserID, Role: enums.MemberRoleAdmin.String()},
			Data: payloads.PaymentVerifiedEvent{
				PaymentRequestID: row.ID,
				MerchantID:       row.MerchantID,
				Type:             row.Type,
				Amount:           row.Amount,
				VerifiedBy:       adminUserID,
				VerifiedAt:       now,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "emitting verification event")
		}
		request = row
		return nil
	})
	if err != nil {
		return nil, err
	}

	// A credited top-up may lift an insufficient-balance suspension.
	if _, err := s.subs.Evaluate(ctx, request.MerchantID); err != nil && s.logg != nil {
		s.logg.Error(ctx, "post-verification evaluation failed", err)
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"payment_request_id": request.ID.String(),
			"merchant_id":        request.MerchantID.String(),
			"verified_by":        adminUserID.String(),
		})
		s.logg.Info(logCtx, "payment request verified")
	}
	return request, nil
}

// Reject is the admin denial of a confirmed transfer. No balance side
// effects.
func (s *Service) Reject(ctx context.Context, requestID, adminUserID uuid.UUID, reason string) (*models.PaymentRequest, error) {
	if adminUserID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "acting user id is required")
	}
	if reason == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "a rejection reason is required")
	}
	var request *models.PaymentRequest
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		row, err := s.lock(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if err := s.guardTransition(ctx, tx, row, enums.PaymentRequestStatusRejected); err != nil {
			return err
		}

		now := s.now().UTC()
		row.Status = enums.PaymentRequestStatusRejected
		row.ProcessedAt = &now
		row.ProcessedByUserID = &adminUserID
		row.RejectReason = &reason
		if err := s.repo.WithTx(tx).Save(ctx, row); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "saving payment request")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventPaymentRejected,
			AggregateType: enums.AggregatePaymentRequest,
			AggregateID:   row.ID,
			Version:       1,
			OccurredAt:    now,
			Actor:         &outbox.ActorRef{UserID: adminUserID, Role: enums.MemberRoleAdmin.String()},
			Data: payloads.PaymentRejectedEvent{
				PaymentRequestID: row.ID,
				MerchantID:       row.MerchantID,
				Amount:           row.Amount,
				Reason:           reason,
				RejectedAt:       now,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "emitting rejection event")
		}
		request = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}

// Cancel lets the merchant withdraw an unprocessed request, freeing the
// active-request slot.
func (s *Service) Cancel(ctx context.Context, merchantID, requestID uuid.UUID) (*models.PaymentRequest, error) {
	var request *models.PaymentRequest
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		row, err := s.lockOwned(ctx, tx, merchantID, requestID)
		if err != nil {
			return err
		}
		if err := s.guardTransition(ctx, tx, row, enums.PaymentRequestStatusCancelled); err != nil {
			return err
		}

		row.Status = enums.PaymentRequestStatusCancelled
		if err := s.repo.WithTx(tx).Save(ctx, row); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "saving payment request")
		}
		request = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}

// GetActive returns the merchant's open request, or nil when none exists. A
// lapsed request is persisted as EXPIRED and treated as absent.
func (s *Service) GetActive(ctx context.Context, merchantID uuid.UUID) (*models.PaymentRequest, error) {
	if merchantID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "merchant id is required")
	}
	row, err := s.repo.GetActive(ctx, merchantID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading active request")
	}
	if row == nil {
		return nil, nil
	}
	if EffectiveStatus(row.Status, row.ExpiresAt, s.now().UTC()) == enums.PaymentRequestStatusExpired {
		if err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
			return s.expireTx(ctx, tx, row.ID)
		}); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return row, nil
}

// Get returns the request with expiry folded into the reported status.
func (s *Service) Get(ctx context.Context, requestID uuid.UUID) (*models.PaymentRequest, error) {
	row, err := s.repo.Get(ctx, requestID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading payment request")
	}
	if row == nil {
		return nil, apperrors.New(apperrors.CodeNotFound, "payment request not found")
	}
	row.Status = EffectiveStatus(row.Status, row.ExpiresAt, s.now().UTC())
	return row, nil
}

// ListByMerchant pages the merchant's requests, newest first, with expiry
// folded into each reported status.
func (s *Service) ListByMerchant(ctx context.Context, merchantID uuid.UUID, filter ListFilter) ([]models.PaymentRequest, int64, error) {
	if merchantID == uuid.Nil {
		return nil, 0, apperrors.New(apperrors.CodeValidation, "merchant id is required")
	}
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	rows, total, err := s.repo.ListByMerchant(ctx, merchantID, filter)
	if err != nil {
		return nil, 0, apperrors.Wrap(apperrors.CodeInternal, err, "listing payment requests")
	}
	s.foldExpiry(rows)
	return rows, total, nil
}

// List pages all requests for admin review.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]models.PaymentRequest, int64, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, apperrors.Wrap(apperrors.CodeInternal, err, "listing payment requests")
	}
	s.foldExpiry(rows)
	return rows, total, nil
}

// ExpireLapsed persists EXPIRED for active requests whose window passed. The
// cron sweep calls it so stale rows cannot hold the active slot forever.
func (s *Service) ExpireLapsed(ctx context.Context, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 100
	}
	now := s.now().UTC()
	rows, err := s.repo.ListLapsedActive(ctx, now, batchSize)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodeInternal, err, "listing lapsed requests")
	}

	expired := 0
	for _, row := range rows {
		err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
			return s.expireTx(ctx, tx, row.ID)
		})
		if err != nil {
			return expired, err
		}
		expired++
	}
	if expired > 0 && s.logg != nil {
		s.logg.Info(s.logg.WithField(ctx, "count", expired), "expired lapsed payment requests")
	}
	return expired, nil
}

func (s *Service) lock(ctx context.Context, tx *gorm.DB, requestID uuid.UUID) (*models.PaymentRequest, error) {
	row, err := s.repo.WithTx(tx).GetForUpdate(ctx, requestID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "locking payment request")
	}
	if row == nil {
		return nil, apperrors.New(apperrors.CodeNotFound, "payment request not found")
	}
	return row, nil
}

func (s *Service) lockOwned(ctx context.Context, tx *gorm.DB, merchantID, requestID uuid.UUID) (*models.PaymentRequest, error) {
	row, err := s.lock(ctx, tx, requestID)
	if err != nil {
		return nil, err
	}
	if row.MerchantID != merchantID {
		return nil, apperrors.New(apperrors.CodeNotFound, "payment request not found")
	}
	return row, nil
}

// guardTransition folds expiry into the stored status, persisting it when
// the window lapsed, then validates the requested move.
func (s *Service) guardTransition(ctx context.Context, tx *gorm.DB, row *models.PaymentRequest, to enums.PaymentRequestStatus) error {
	effective := EffectiveStatus(row.Status, row.ExpiresAt, s.now().UTC())
	if effective == enums.PaymentRequestStatusExpired && row.Status != enums.PaymentRequestStatusExpired {
		row.Status = enums.PaymentRequestStatusExpired
		if err := s.repo.WithTx(tx).Save(ctx, row); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "persisting expiry")
		}
		return apperrors.New(apperrors.CodeExpired, "payment request has expired")
	}
	return Transition(effective, to)
}

func (s *Service) expireTx(ctx context.Context, tx *gorm.DB, requestID uuid.UUID) error {
	repo := s.repo.WithTx(tx)
	row, err := repo.GetForUpdate(ctx, requestID)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "locking payment request")
	}
	if row == nil || !row.Status.IsActive() {
		return nil
	}
	row.Status = enums.PaymentRequestStatusExpired
	if err := repo.Save(ctx, row); err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "persisting expiry")
	}
	return nil
}

func (s *Service) foldExpiry(rows []models.PaymentRequest) {
	now := s.now().UTC()
	for i := range rows {
		rows[i].Status = EffectiveStatus(rows[i].Status, rows[i].ExpiresAt, now)
	}
}
