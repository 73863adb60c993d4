package api

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/domalend/oracle/internal/chain"
	"github.com/domalend/oracle/internal/domain"
	"github.com/domalend/oracle/internal/external"
)

// ValueReader reads the current oracle value of a token.
type ValueReader interface {
	TokenValue(ctx context.Context, token common.Address) (*big.Int, error)
}

// QuoteLister lists the last stored index quotes.
type QuoteLister interface {
	GetAllQuotes(ctx context.Context) ([]external.Quote, error)
}

// PriceHandler serves the on-chain oracle values and the stored index quotes.
type PriceHandler struct {
	oracle ValueReader
	quotes QuoteLister // nil when no database is configured
}

// NewPriceHandler creates a new price handler. quotes may be nil.
func NewPriceHandler(oracle ValueReader, quotes QuoteLister) *PriceHandler {
	return &PriceHandler{oracle: oracle, quotes: quotes}
}

type priceResponse struct {
	Token      string `json:"token"`
	FixedPoint string `json:"valueFixedPoint"`
	USD        string `json:"valueUsd"`
}

// GetPrice handles GET /api/v1/prices/{token}.
func (h *PriceHandler) GetPrice(w http.ResponseWriter, r *http.Request) {
	token, err := domain.ParseAddress(r.PathValue("token"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid token address")
		return
	}

	value, err := h.oracle.TokenValue(r.Context(), token)
	if err != nil {
		if errors.Is(err, chain.ErrNotSet) {
			writeError(w, http.StatusNotFound, "no value set for token")
			return
		}
		slog.Error("failed to read oracle value", "token", token.Hex(), "error", err)
		writeError(w, http.StatusBadGateway, "oracle read failed")
		return
	}

	writeJSON(w, http.StatusOK, priceResponse{
		Token:      strings.ToLower(token.Hex()),
		FixedPoint: value.String(),
		USD:        domain.FormatFixedPoint(value),
	})
}

// ListQuotes handles GET /api/v1/quotes.
func (h *PriceHandler) ListQuotes(w http.ResponseWriter, r *http.Request) {
	if h.quotes == nil {
		writeError(w, http.StatusServiceUnavailable, "quote history is not enabled")
		return
	}

	quotes, err := h.quotes.GetAllQuotes(r.Context())
	if err != nil {
		slog.Error("failed to list quotes", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if quotes == nil {
		quotes = []external.Quote{}
	}
	writeJSON(w, http.StatusOK, quotes)
}
