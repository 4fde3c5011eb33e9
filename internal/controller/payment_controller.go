package controller

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	apppayment "github.com/rentago/payments/internal/application/payment"
	"github.com/rentago/payments/internal/domain/errs"
	"github.com/rentago/payments/internal/domain/payment"
	"github.com/rentago/payments/internal/infrastructure/observability"
)

// PaymentController handles payment-related HTTP requests.
type PaymentController struct {
	initiate          *apppayment.InitiatePaymentUseCase
	confirm           *apppayment.ConfirmPaymentUseCase
	get               *apppayment.GetPaymentUseCase
	ledger            payment.Repository
	metrics           *observability.Metrics
	frontendResultURL string
	provider          string
}

// NewPaymentController creates a new PaymentController.
func NewPaymentController(
	initiate *apppayment.InitiatePaymentUseCase,
	confirm *apppayment.ConfirmPaymentUseCase,
	get *apppayment.GetPaymentUseCase,
	ledger payment.Repository,
	metrics *observability.Metrics,
	frontendResultURL string,
	provider string,
) *PaymentController {
	return &PaymentController{
		initiate:          initiate,
		confirm:           confirm,
		get:               get,
		ledger:            ledger,
		metrics:           metrics,
		frontendResultURL: frontendResultURL,
		provider:          provider,
	}
}

// InitiatePayment handles POST /api/v1/payments
func (h *PaymentController) InitiatePayment(w http.ResponseWriter, r *http.Request) {
	var req InitiatePaymentRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	resp, err := h.initiate.Execute(r.Context(), apppayment.InitiatePaymentRequest{
		ReservationID: req.ReservationID,
		UserID:        req.UserID,
		AmountCents:   req.AmountCents,
		Currency:      req.Currency,
	})
	if err != nil {
		if h.metrics != nil {
			h.metrics.PaymentsInitiated.WithLabelValues(h.provider, "error").Inc()
		}
		writeError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.PaymentsInitiated.WithLabelValues(h.provider, "ok").Inc()
	}
	writeJSON(w, http.StatusCreated, InitiatePaymentResponse{
		PaymentID:   resp.Payment.ID.String(),
		Status:      string(resp.Payment.Status),
		ApprovalURL: resp.ApprovalURL,
	})
}

// ConfirmCallback handles GET /api/v1/payments/confirm?token=...
//
// This is the browser return leg of the provider flow, so the response
// is a redirect to the frontend result page rather than a JSON body. An
// ambiguous provider outcome redirects to a pending page: the payment
// may still have succeeded and the reconciler will settle it.
func (h *PaymentController) ConfirmCallback(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "missing token parameter", Code: "validation"})
		return
	}

	result, err := h.confirm.Execute(r.Context(), token)
	if err != nil {
		switch errs.KindOf(err) {
		case errs.KindNotFound:
			writeError(w, err)
		case errs.KindGatewayAmbiguous:
			h.redirectPending(w, r, token)
		default:
			writeError(w, err)
		}
		return
	}

	if h.metrics != nil {
		if result.Replayed {
			h.metrics.ConfirmReplays.Inc()
		} else {
			h.metrics.PaymentsConfirmed.WithLabelValues(string(result.Status)).Inc()
		}
	}

	h.redirectResult(w, r, result.Status == payment.StatusConfirmed, result.ReservationID)
}

// GetPayment handles GET /api/v1/payments/{id}
func (h *PaymentController) GetPayment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid payment id", Code: "validation"})
		return
	}

	record, err := h.get.Execute(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, FromRecord(record))
}

func (h *PaymentController) redirectResult(w http.ResponseWriter, r *http.Request, success bool, reservationID int64) {
	q := url.Values{}
	q.Set("Success", strconv.FormatBool(success))
	q.Set("reservationId", strconv.FormatInt(reservationID, 10))
	http.Redirect(w, r, h.frontendResultURL+"?"+q.Encode(), http.StatusFound)
}

func (h *PaymentController) redirectPending(w http.ResponseWriter, r *http.Request, token string) {
	q := url.Values{}
	q.Set("Status", "pending")
	if record, err := h.ledger.GetByReference(r.Context(), token); err == nil {
		q.Set("reservationId", strconv.FormatInt(record.ReservationID, 10))
	}
	http.Redirect(w, r, h.frontendResultURL+"?"+q.Encode(), http.StatusFound)
}
