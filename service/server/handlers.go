package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"

	"github.com/brojonat/ticketchain/service/db"
	natspkg "github.com/brojonat/ticketchain/service/nats"
	"github.com/brojonat/ticketchain/service/soroban"
)

const (
	maxRequestBodySize = 1 << 20 // 1MB
	maxListLimit       = 1000
)

// API methods accepted by POST /api/soroban.
const (
	MethodGetTotals      = "getTotals"
	MethodBuildMintTxXDR = "buildMintTxXdr"
	MethodSubmitTx       = "submitTx"
)

// TicketService is the contract-facing half of the API.
type TicketService interface {
	ContractID() string
	GetTotals(ctx context.Context) (*soroban.Totals, error)
	BuildMintTx(ctx context.Context, req soroban.MintRequest) (string, error)
	SubmitTx(ctx context.Context, signedXDR string) (*soroban.Submission, error)
}

// SubmissionStore persists accepted submissions.
type SubmissionStore interface {
	RecordSubmission(ctx context.Context, params db.RecordSubmissionParams) (*db.Submission, error)
	ListSubmissions(ctx context.Context, params db.ListSubmissionsParams) ([]*db.Submission, error)
}

// Confirmer starts tracking an accepted submission until it is final.
type Confirmer interface {
	StartConfirmation(ctx context.Context, hash, signer string) error
}

// submitHooks are the optional side effects of an accepted submission.
type submitHooks struct {
	store     SubmissionStore
	publisher natspkg.Publisher
	confirmer Confirmer
}

type apiRequest struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

type getTotalsRequest struct{}

type buildMintRequest struct {
	PublicKey string       `json:"publicKey"`
	Recipient string       `json:"recipient"`
	Amount    *json.Number `json:"amount"`
}

type submitTxRequest struct {
	SignedXDR string `json:"signedXdr"`
}

type unknownRequest struct {
	method string
}

type buildMintResponse struct {
	XDR string `json:"xdr"`
}

// decodeRequest turns the method name and raw params into one of the request variants.
func decodeRequest(req apiRequest) (any, error) {
	params := req.Params
	if len(params) == 0 || string(params) == "null" {
		params = json.RawMessage("{}")
	}

	switch req.Method {
	case MethodGetTotals:
		return getTotalsRequest{}, nil
	case MethodBuildMintTxXDR:
		var r buildMintRequest
		if err := json.Unmarshal(params, &r); err != nil {
			return nil, errorf("invalid params for %s: %v", req.Method, err)
		}
		return r, nil
	case MethodSubmitTx:
		var r submitTxRequest
		if err := json.Unmarshal(params, &r); err != nil {
			return nil, errorf("invalid params for %s: %v", req.Method, err)
		}
		return r, nil
	default:
		return unknownRequest{method: req.Method}, nil
	}
}

// toMintRequest validates the build request and converts it for the service.
func (r buildMintRequest) toMintRequest() (soroban.MintRequest, error) {
	if r.PublicKey == "" || r.Recipient == "" || r.Amount == nil {
		return soroban.MintRequest{}, errorf("Missing required parameters: publicKey, recipient, amount")
	}
	amount, err := r.Amount.Int64()
	if err != nil || amount < 0 || amount > math.MaxUint32 {
		return soroban.MintRequest{}, errorf("amount must be an integer between 0 and %d", uint32(math.MaxUint32))
	}
	return soroban.MintRequest{
		PublicKey: r.PublicKey,
		Recipient: r.Recipient,
		Amount:    uint32(amount),
	}, nil
}

// handleSorobanAPI returns the handler for the ticket contract proxy.
// POST /api/soroban
func handleSorobanAPI(tickets TicketService, hooks submitHooks, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var req apiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Debug("failed to decode api request", "error", err)
			if strings.Contains(err.Error(), "http: request body too large") {
				writeError(w, "request body too large: maximum size is 1MB", http.StatusBadRequest)
				return
			}
			writeError(w, "invalid request body: must be valid JSON", http.StatusBadRequest)
			return
		}

		logger.InfoContext(r.Context(), "api request", "method", req.Method, "request_id", RequestID(r.Context()))

		if tickets.ContractID() == "" {
			logger.ErrorContext(r.Context(), "contract id not configured")
			writeError(w, soroban.ErrContractNotConfigured.Error(), http.StatusInternalServerError)
			return
		}

		decoded, err := decodeRequest(req)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		switch v := decoded.(type) {
		case getTotalsRequest:
			totals, err := tickets.GetTotals(r.Context())
			if err != nil {
				writeServiceError(w, r, logger, "getTotals", err)
				return
			}
			writeJSON(w, totals, http.StatusOK)

		case buildMintRequest:
			mint, err := v.toMintRequest()
			if err != nil {
				logger.DebugContext(r.Context(), "invalid mint request", "error", err)
				writeError(w, err.Error(), http.StatusBadRequest)
				return
			}
			envelope, err := tickets.BuildMintTx(r.Context(), mint)
			if err != nil {
				writeServiceError(w, r, logger, "buildMintTxXdr", err)
				return
			}
			logger.InfoContext(r.Context(), "mint transaction built",
				"public_key", mint.PublicKey,
				"recipient", mint.Recipient,
				"amount", mint.Amount,
			)
			writeJSON(w, buildMintResponse{XDR: envelope}, http.StatusOK)

		case submitTxRequest:
			if v.SignedXDR == "" {
				writeError(w, "signedXdr is required", http.StatusBadRequest)
				return
			}
			sub, err := tickets.SubmitTx(r.Context(), v.SignedXDR)
			if err != nil {
				writeServiceError(w, r, logger, "submitTx", err)
				return
			}
			hooks.afterSubmit(r.Context(), sub, logger)
			writeJSON(w, sub.Result, http.StatusOK)

		case unknownRequest:
			writeError(w, fmt.Sprintf("Unknown method: %s", v.method), http.StatusBadRequest)
		}
	})
}

// afterSubmit runs the optional side effects of an accepted submission.
// Failures are logged and never change the response.
func (h submitHooks) afterSubmit(ctx context.Context, sub *soroban.Submission, logger *slog.Logger) {
	hash := sub.Hash()
	if hash == "" {
		return
	}

	if h.store != nil {
		_, err := h.store.RecordSubmission(ctx, db.RecordSubmissionParams{
			Hash:   hash,
			Signer: sub.Signer,
			Status: sub.Result.Status,
		})
		if err != nil {
			logger.ErrorContext(ctx, "failed to record submission", "hash", hash, "error", err)
		}
	}

	if h.publisher != nil {
		if err := h.publisher.PublishTicketEvent(ctx, natspkg.SubmittedEvent(sub)); err != nil {
			logger.ErrorContext(ctx, "failed to publish submitted event", "hash", hash, "error", err)
		}
	}

	if h.confirmer != nil {
		if err := h.confirmer.StartConfirmation(ctx, hash, sub.Signer); err != nil {
			logger.ErrorContext(ctx, "failed to start confirmation", "hash", hash, "error", err)
		}
	}
}

// writeServiceError maps a service failure to a response.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, method string, err error) {
	var rejected *soroban.RejectedError
	switch {
	case errors.As(err, &rejected):
		logger.ErrorContext(r.Context(), "transaction rejected", "method", method, "error", rejected.Message)
		writeError(w, rejected.Message, http.StatusInternalServerError)
	default:
		logger.ErrorContext(r.Context(), "api request failed", "method", method, "request_id", RequestID(r.Context()), "error", err)
		writeError(w, err.Error(), http.StatusInternalServerError)
	}
}

// handleListSubmissions returns a handler that lists recorded submissions.
// GET /api/submissions?signer=G...&limit=N&offset=N
func handleListSubmissions(store SubmissionStore, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()

		signer := query.Get("signer")
		if signer != "" {
			if err := validateAccountID(signer); err != nil {
				writeError(w, err.Error(), http.StatusBadRequest)
				return
			}
		}

		limit := int32(50)
		if limitStr := query.Get("limit"); limitStr != "" {
			var parsedLimit int
			if _, err := fmt.Sscanf(limitStr, "%d", &parsedLimit); err != nil {
				writeError(w, "invalid limit parameter: must be an integer", http.StatusBadRequest)
				return
			}
			if parsedLimit < 1 {
				writeError(w, "limit must be at least 1", http.StatusBadRequest)
				return
			}
			if parsedLimit > maxListLimit {
				writeError(w, fmt.Sprintf("limit cannot exceed %d", maxListLimit), http.StatusBadRequest)
				return
			}
			limit = int32(parsedLimit)
		}

		offset := int32(0)
		if offsetStr := query.Get("offset"); offsetStr != "" {
			var parsedOffset int
			if _, err := fmt.Sscanf(offsetStr, "%d", &parsedOffset); err != nil {
				writeError(w, "invalid offset parameter: must be an integer", http.StatusBadRequest)
				return
			}
			if parsedOffset < 0 {
				writeError(w, "offset cannot be negative", http.StatusBadRequest)
				return
			}
			offset = int32(parsedOffset)
		}

		subs, err := store.ListSubmissions(r.Context(), db.ListSubmissionsParams{
			Signer: signer,
			Limit:  limit,
			Offset: offset,
		})
		if err != nil {
			logger.Error("failed to list submissions", "signer", signer, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		logger.Debug("submissions listed", "signer", signer, "count", len(subs))

		if subs == nil {
			subs = []*db.Submission{}
		}
		writeJSON(w, map[string]interface{}{
			"submissions": subs,
			"count":       len(subs),
			"limit":       limit,
			"offset":      offset,
		}, http.StatusOK)
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// validateAccountID checks that s is a G... account strkey.
func validateAccountID(s string) error {
	if !soroban.IsAccountID(s) {
		return errorf("invalid signer: must be a Stellar account ID")
	}
	return nil
}

// errorf is a helper to format error strings.
func errorf(format string, args ...interface{}) error {
	return &validationError{msg: strings.TrimSpace(fmt.Sprintf(format, args...))}
}

type validationError struct {
	msg string
}

func (e *validationError) Error() string {
	return e.msg
}
