// internal/api/handler/account.go
package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"leadflow-wallet/internal/api/types"
	"leadflow-wallet/internal/domain"
	"leadflow-wallet/internal/service"
	"leadflow-wallet/internal/util"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// AccountHandler handles HTTP requests for accounts and the wallet ledger.
type AccountHandler struct {
	responder
	ledger   service.LedgerService
	usage    service.UsageService
	metering service.MeteringService
	billing  service.BillingService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(
	ledger service.LedgerService,
	usage service.UsageService,
	metering service.MeteringService,
	billing service.BillingService,
	logger *slog.Logger,
) *AccountHandler {
	return &AccountHandler{
		responder: newResponder(logger),
		ledger:    ledger,
		usage:     usage,
		metering:  metering,
		billing:   billing,
	}
}

// CreateAccountRequest is sent by the auth provider's provisioning hook.
type CreateAccountRequest struct {
	UserID string `json:"user_id" validate:"required,uuid"`
	Plan   string `json:"plan" validate:"omitempty,oneof=free tier-1 tier-2 tier-3"`
}

// AccountResponse is the account view returned to clients.
type AccountResponse struct {
	UserID         uuid.UUID             `json:"user_id"`
	Plan           domain.Plan           `json:"plan"`
	WalletBalance  int64                 `json:"wallet_balance"`
	BalanceDisplay string                `json:"balance_display"`
	Usage          *domain.UsageSnapshot `json:"usage,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

func newAccountResponse(account *domain.Account, usage *domain.UsageSnapshot) AccountResponse {
	return AccountResponse{
		UserID:         account.UserID,
		Plan:           account.Plan,
		WalletBalance:  account.WalletBalance,
		BalanceDisplay: domain.FormatMinor(account.WalletBalance),
		Usage:          usage,
		CreatedAt:      account.CreatedAt,
		UpdatedAt:      account.UpdatedAt,
	}
}

// CreateAccount handles account provisioning.
// POST /accounts
func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := h.decodeAndValidate(w, r, &req); err != nil {
		h.respondWithError(w, err)
		return
	}
	plan := domain.PlanFree
	if req.Plan != "" {
		plan = domain.Plan(req.Plan)
	}

	account, err := h.ledger.CreateAccount(r.Context(), uuid.MustParse(req.UserID), plan)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusCreated, newAccountResponse(account, nil))
}

// GetAccount returns the plan, balance and usage of an account.
// GET /accounts/{userID}
func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	account, err := h.ledger.GetAccount(r.Context(), userID)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	snapshot, err := h.usage.GetUsage(r.Context(), userID)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, newAccountResponse(account, &snapshot))
}

// LedgerRequest is the body of the debit and credit endpoints. Amounts are minor units.
type LedgerRequest struct {
	Amount         int64           `json:"amount" validate:"required,gt=0"`
	ActionType     string          `json:"action_type" validate:"required"`
	Reason         string          `json:"reason" validate:"max=500"`
	Metadata       domain.Metadata `json:"metadata"`
	IdempotencyKey string          `json:"idempotency_key" validate:"max=255"`
}

func (h *AccountHandler) ledgerEntry(w http.ResponseWriter, r *http.Request) (domain.LedgerEntry, error) {
	userID, err := userIDParam(r)
	if err != nil {
		return domain.LedgerEntry{}, err
	}
	var req LedgerRequest
	if err := h.decodeAndValidate(w, r, &req); err != nil {
		return domain.LedgerEntry{}, err
	}
	action, err := domain.ParseActionType(req.ActionType)
	if err != nil {
		return domain.LedgerEntry{}, err
	}
	return domain.LedgerEntry{
		UserID:         userID,
		Amount:         req.Amount,
		ActionType:     action,
		Reason:         req.Reason,
		Metadata:       req.Metadata,
		IdempotencyKey: idempotencyKey(r, req.IdempotencyKey),
	}, nil
}

// Debit handles a wallet debit.
// POST /accounts/{userID}/debit
func (h *AccountHandler) Debit(w http.ResponseWriter, r *http.Request) {
	entry, err := h.ledgerEntry(w, r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	result, err := h.ledger.Debit(r.Context(), entry)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithLedgerResult(w, result)
}

// Credit handles a wallet credit.
// POST /accounts/{userID}/credit
func (h *AccountHandler) Credit(w http.ResponseWriter, r *http.Request) {
	entry, err := h.ledgerEntry(w, r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	result, err := h.ledger.Credit(r.Context(), entry)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithLedgerResult(w, result)
}

// RefundRequest is the body of the refund endpoint.
type RefundRequest struct {
	Amount         int64           `json:"amount" validate:"required,gt=0"`
	Reason         string          `json:"reason" validate:"required,max=500"`
	Metadata       domain.Metadata `json:"metadata"`
	IdempotencyKey string          `json:"idempotency_key" validate:"max=255"`
}

// Refund issues a compensating credit for a debited action that failed downstream.
// POST /accounts/{userID}/refund
func (h *AccountHandler) Refund(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	var req RefundRequest
	if err := h.decodeAndValidate(w, r, &req); err != nil {
		h.respondWithError(w, err)
		return
	}

	result, err := h.metering.Refund(r.Context(), userID, service.RefundRequest{
		Amount:         req.Amount,
		Reason:         req.Reason,
		Metadata:       req.Metadata,
		IdempotencyKey: idempotencyKey(r, req.IdempotencyKey),
	})
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithLedgerResult(w, result)
}

// LedgerResponse adds display formatting to a ledger result.
type LedgerResponse struct {
	domain.LedgerResult
	BalanceDisplay string `json:"balance_display,omitempty"`
}

func (h *AccountHandler) respondWithLedgerResult(w http.ResponseWriter, result domain.LedgerResult) {
	if !result.Success {
		h.respondWithJSON(w, refusalStatus(result.Reason), LedgerResponse{LedgerResult: result})
		return
	}
	h.respondWithJSON(w, http.StatusOK, LedgerResponse{
		LedgerResult:   result,
		BalanceDisplay: domain.FormatMinor(result.NewBalance),
	})
}

// GetTransactionHistory returns the account's ledger, newest first.
// GET /accounts/{userID}/transactions?limit=20&offset=0
func (h *AccountHandler) GetTransactionHistory(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	limit, offset, err := pagination(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	transactions, total, err := h.ledger.GetTransactionHistory(r.Context(), userID, limit, offset)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	if transactions == nil {
		transactions = []domain.WalletTransaction{}
	}
	h.respondWithJSON(w, http.StatusOK, types.PaginatedResponse[domain.WalletTransaction]{
		Data:       transactions,
		Limit:      limit,
		Offset:     offset,
		TotalCount: total,
	})
}

// VerifyAudit replays the ledger and compares it with the stored balance.
// GET /accounts/{userID}/audit
func (h *AccountHandler) VerifyAudit(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	report, err := h.ledger.VerifyAudit(r.Context(), userID)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	status := http.StatusOK
	if !report.Consistent {
		status = http.StatusConflict
	}
	h.respondWithJSON(w, status, report)
}

// LinkCustomerRequest binds a payment gateway customer to an account.
type LinkCustomerRequest struct {
	CustomerID string `json:"customer_id" validate:"required,startswith=cus_,max=255"`
}

// LinkStripeCustomer stores the Stripe customer used to route billing webhooks.
// PUT /accounts/{userID}/stripe-customer
func (h *AccountHandler) LinkStripeCustomer(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	var req LinkCustomerRequest
	if err := h.decodeAndValidate(w, r, &req); err != nil {
		h.respondWithError(w, err)
		return
	}
	if err := h.billing.LinkCustomer(r.Context(), userID, req.CustomerID); err != nil {
		h.respondWithError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// idempotencyKey prefers the body field and falls back to the Idempotency-Key header.
func idempotencyKey(r *http.Request, fromBody string) string {
	if fromBody != "" {
		return fromBody
	}
	return r.Header.Get("Idempotency-Key")
}

func pagination(r *http.Request) (int, int, error) {
	limit, offset := defaultPageLimit, 0
	if s := r.URL.Query().Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v <= 0 {
			return 0, 0, util.ErrInvalidInput
		}
		limit = min(v, maxPageLimit)
	}
	if s := r.URL.Query().Get("offset"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 0 {
			return 0, 0, util.ErrInvalidInput
		}
		offset = v
	}
	return limit, offset, nil
}
