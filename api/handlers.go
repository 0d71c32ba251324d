package api

import (
	// Go Internal Packages
	"context"
	"encoding/json"
	"net/http"
	"strings"

	// Local Packages
	errors "bbps-hub/errors"
	helpers "bbps-hub/helpers"
	models "bbps-hub/models"
	bills "bbps-hub/services/bills"
	webhooks "bbps-hub/services/webhooks"

	// External Packages
	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

type Directory interface {
	Categories(ctx context.Context) ([]models.Category, error)
	Locations(ctx context.Context) ([]models.Location, error)
	Operators(ctx context.Context, filters models.OperatorFilters) ([]models.Operator, error)
	Operator(ctx context.Context, operatorID string) (*models.Operator, error)
	Parameters(ctx context.Context, operatorID string) ([]models.OperatorParameter, error)
	SubCategory(ctx context.Context, tag string, filters models.OperatorFilters) ([]models.Operator, error)
	SubCategories() models.SubCategoryList
}

type Bills interface {
	FetchBill(ctx context.Context, in bills.FetchInput) (*models.BillFetch, bool, error)
	PayBill(ctx context.Context, in bills.PayInput) (*models.BillPayment, bool, error)
	CheckPaymentStatus(ctx context.Context, transactionID string) (*models.StatusSnapshot, error)
	ListFetches(ctx context.Context, q models.FetchQuery) ([]models.BillFetch, models.Pagination, error)
	ListPayments(ctx context.Context, q models.PaymentQuery) ([]models.BillPayment, models.Pagination, error)
	PaymentDetails(ctx context.Context, userID, paymentID string) (*models.PaymentDetails, error)
}

type Reconciler interface {
	Apply(ctx context.Context, n models.WebhookNotification, raw map[string]any) (*models.ReconcileResult, error)
}

type Handler struct {
	logger     *zap.Logger
	directory  Directory
	bills      Bills
	reconciler Reconciler
}

func NewHandler(logger *zap.Logger, directory Directory, bills Bills, reconciler Reconciler) *Handler {
	return &Handler{logger: logger, directory: directory, bills: bills, reconciler: reconciler}
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeOK(w, "ok", nil)
}

// Operator directory

func (h *Handler) Categories(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	cats, err := h.directory.Categories(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, "", cats)
}

func (h *Handler) Locations(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	locs, err := h.directory.Locations(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, "", locs)
}

func (h *Handler) Operators(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ops, err := h.directory.Operators(r.Context(), filtersFromQuery(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, "", ops)
}

func (h *Handler) Operator(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	op, err := h.directory.Operator(r.Context(), ps.ByName("operatorId"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, "", op)
}

func (h *Handler) OperatorParameters(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	params, err := h.directory.Parameters(r.Context(), ps.ByName("operatorId"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, "", params)
}

func (h *Handler) SubCategories(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeOK(w, "", h.directory.SubCategories())
}

func (h *Handler) SubCategoryOperators(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ops, err := h.directory.SubCategory(r.Context(), ps.ByName("tag"), filtersFromQuery(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, "", ops)
}

// Bills

func (h *Handler) FetchBill(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req FetchRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	fetch, duplicate, err := h.bills.FetchBill(r.Context(), bills.FetchInput{
		OperatorID:     req.OperatorID,
		Parameters:     req.Parameters,
		UserID:         UserID(r.Context()),
		IdempotencyKey: idempotencyKey(r, req.IdempotencyKey),
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	msg := "bill fetched successfully"
	if duplicate {
		msg = "bill fetch already processed"
	}
	writeOK(w, msg, fetch)
}

func (h *Handler) PayBill(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req PayRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	payment, duplicate, err := h.bills.PayBill(r.Context(), bills.PayInput{
		FetchReferenceID: req.FetchReferenceID,
		Amount:           req.Amount,
		UserID:           UserID(r.Context()),
		PaymentMethod:    models.PaymentMethod(req.PaymentMethod),
		IdempotencyKey:   idempotencyKey(r, req.IdempotencyKey),
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	msg := "payment initiated"
	switch {
	case duplicate:
		msg = "payment already processed"
	case payment.Status == models.PaymentSuccess:
		msg = "payment successful"
	}
	writeOK(w, msg, payment)
}

func (h *Handler) ListFetches(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	page, err := pageFromQuery(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	q := r.URL.Query()
	items, pagination, err := h.bills.ListFetches(r.Context(), models.FetchQuery{
		UserID:     UserID(r.Context()),
		OperatorID: q.Get("operatorId"),
		Status:     models.FetchStatus(strings.ToUpper(q.Get("status"))),
		Page:       page,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: items, Pagination: &pagination})
}

func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	page, err := pageFromQuery(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	q := models.PaymentQuery{UserID: UserID(r.Context()), Page: page}
	if s := r.URL.Query().Get("status"); s != "" {
		status, ok := models.ParsePaymentStatus(s)
		if !ok {
			writeError(w, r, h.logger, errors.InvalidParamsErr(errors.New("unknown status "+s)))
			return
		}
		q.Status = status
	}

	items, pagination, err := h.bills.ListPayments(r.Context(), q)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: items, Pagination: &pagination})
}

func (h *Handler) PaymentDetails(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	p, err := h.bills.PaymentDetails(r.Context(), UserID(r.Context()), ps.ByName("id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, "", p)
}

// PaymentStatus asks the biller for the latest status of a transaction.
func (h *Handler) PaymentStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	snap, err := h.bills.CheckPaymentStatus(r.Context(), ps.ByName("id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, "", snap)
}

// Webhooks

// Webhook acknowledges the biller's status callback. Unmatched notifications
// are still acknowledged so the biller stops retrying them.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var raw map[string]any
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&raw); err != nil {
		writeError(w, r, h.logger, errors.InvalidBodyErr(err))
		return
	}
	h.logger.Info("webhook received", zap.String("request_id", RequestID(r.Context())), zap.String("body", helpers.CompactJSON(raw)))

	res, err := h.reconciler.Apply(r.Context(), webhooks.ParseNotification(raw), raw)
	if err != nil {
		if errors.Is(err, errors.Invalid) {
			writeError(w, r, h.logger, err)
			return
		}
		h.logger.Error("webhook processing failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Response{Success: false, Message: "webhook processing failed"})
		return
	}

	if !res.Matched {
		writeOK(w, "webhook received but payment not found", res)
		return
	}
	writeOK(w, "webhook processed successfully", res)
}

func (h *Handler) WebhookHealth(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeOK(w, "webhook endpoint is healthy", nil)
}
