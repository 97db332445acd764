package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/Secured-Finance/contracts-sub003/domain/market"
	"github.com/Secured-Finance/contracts-sub003/domain/orderbook"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps engine errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, market.ErrNoOrderBook),
		errors.Is(err, orderbook.ErrNoOrderExists):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, orderbook.ErrCallerNotMaker):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, orderbook.ErrInvalidAmount),
		errors.Is(err, orderbook.ErrInvalidPrice),
		errors.Is(err, market.ErrInvalidMaturity):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, orderbook.ErrMarketNotOpen),
		errors.Is(err, orderbook.ErrMarketTerminated),
		errors.Is(err, orderbook.ErrEmptyOrderBook):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func pathID(r *http.Request, name string) (uint64, error) {
	return strconv.ParseUint(r.PathValue(name), 10, 64)
}

func parseInt64(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func parseSide(s string) (orderbook.Side, bool) {
	switch s {
	case "LEND", "lend":
		return orderbook.SideLend, true
	case "BORROW", "borrow":
		return orderbook.SideBorrow, true
	default:
		return 0, false
	}
}
