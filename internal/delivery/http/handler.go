package httpd

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"

	"mpesa_backend/internal/domain"
	"mpesa_backend/internal/repository"
	"mpesa_backend/internal/usecase"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/handlers"
	"github.com/shopspring/decimal"
)

const maxCallbackBytes = 1 << 20

// OutcomeObserver receives every callback outcome after the acknowledgment is
// written. Observe must not block.
type OutcomeObserver interface {
	Observe(out domain.CallbackOutcome)
}

type Handler struct {
	stk        *usecase.STKUsecase
	reconciler *usecase.CallbackReconciler
	observer   OutcomeObserver
	validate   *validator.Validate
}

func NewHandler(stk *usecase.STKUsecase, rec *usecase.CallbackReconciler, obs OutcomeObserver) *Handler {
	return &Handler{
		stk:        stk,
		reconciler: rec,
		observer:   obs,
		validate:   validator.New(),
	}
}

type RouteOptions struct {
	Sig            SigConfig
	AllowedOrigins []string
}

func (h *Handler) Routes(opts RouteOptions) http.Handler {
	r := chi.NewRouter()

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", HeaderTimestamp, HeaderSignature},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Group(func(r chi.Router) {
		if opts.Sig.Secret != "" {
			r.Use(SignatureMiddleware(opts.Sig))
		}
		r.Post("/mpesa/stk-push", h.STKPush)
		r.Post("/mpesa/stk-query", h.STKQuery)
	})

	r.Post("/mpesa/callback", h.Callback)
	r.Get("/mpesa/status/{checkoutRequestId}", h.Status)
	r.Get("/mpesa/transactions", h.ListTransactions)
	r.Get("/healthz", h.Healthz)

	return handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(r)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func statusFor(err error) int {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// POST /mpesa/stk-push
func (h *Handler) STKPush(w http.ResponseWriter, r *http.Request) {
	var req STKPushReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp{Error: "invalid json"})
		return
	}

	if err := h.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}

	amount, err := decimal.NewFromString(req.Amount.String())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp{Error: "invalid amount format"})
		return
	}

	resp, err := h.stk.Push(r.Context(), usecase.PushInput{
		Phone:            req.Phone,
		Amount:           amount,
		AccountReference: req.AccountReference,
		TransactionDesc:  req.TransactionDesc,
	})
	if err != nil {
		writeJSON(w, statusFor(err), errorResp{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// POST /mpesa/callback
//
// The gateway always gets a 200 with the canonical acknowledgment.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxCallbackBytes))
	if err != nil {
		log.Printf("mpesa callback: read body failed: remote=%s err=%v", r.RemoteAddr, err)
	}
	log.Printf("mpesa callback received: remote=%s bytes=%d", r.RemoteAddr, len(body))

	out := h.reconciler.Reconcile(r.Context(), body)
	writeJSON(w, http.StatusOK, out.Ack())

	if h.observer != nil {
		h.observer.Observe(out)
	}
}

// POST /mpesa/stk-query
func (h *Handler) STKQuery(w http.ResponseWriter, r *http.Request) {
	var req STKQueryReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	resp, err := h.stk.Query(r.Context(), req.CheckoutRequestID)
	if err != nil {
		writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// GET /mpesa/status/{checkoutRequestId}
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "checkoutRequestId")
	t, err := h.stk.Status(r.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Transaction not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, toStatusResp(*t))
}

// GET /mpesa/transactions?status=&phone_number=&account_reference=&mpesa_receipt_number=&limit=&offset=
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.TxFilter{
		Status:             domain.TxStatus(q.Get("status")),
		PhoneNumber:        q.Get("phone_number"),
		AccountReference:   q.Get("account_reference"),
		MpesaReceiptNumber: q.Get("mpesa_receipt_number"),
	}

	limit, offset := pageParams(q)

	items, err := h.stk.List(r.Context(), filter, limit, offset)
	if err != nil {
		writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
		return
	}

	out := make([]TxItem, 0, len(items))
	for _, t := range items {
		out = append(out, toTxItem(t))
	}
	writeJSON(w, http.StatusOK, out)
}

// pageParams reads limit and offset. Unparsable values fall back to the
// defaults and large limits are capped.
func pageParams(q url.Values) (int, int) {
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	return repository.ClampPage(limit, offset)
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
