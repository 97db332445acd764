package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/Secured-Finance/contracts-sub003/domain/orderbook"
	"github.com/Secured-Finance/contracts-sub003/service"
)

type Handler struct {
	svc    *service.MarketService
	logger *slog.Logger
}

func NewHandler(svc *service.MarketService, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createBookRequest struct {
	PreOpening     int64 `json:"pre_opening"`
	Maturity       int64 `json:"maturity"`
	ReferencePrice int64 `json:"reference_price"`
}

// CreateOrderBook opens a new maturity.
// POST /api/books
func (h *Handler) CreateOrderBook(w http.ResponseWriter, r *http.Request) {
	var req createBookRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	bookID, err := h.svc.CreateOrderBook(req.PreOpening, req.Maturity, req.ReferencePrice)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]uint64{"order_book_id": bookID})
}

// ListOrderBooks returns the ids of all maturities.
// GET /api/books
func (h *Handler) ListOrderBooks(w http.ResponseWriter, r *http.Request) {
	ids := h.svc.OrderBookIDs()
	if ids == nil {
		ids = []uint64{}
	}
	writeJSON(w, http.StatusOK, map[string][]uint64{"order_book_ids": ids})
}

type detailResponse struct {
	OrderBookID       uint64 `json:"order_book_id"`
	State             string `json:"state"`
	BestLendPrice     int64  `json:"best_lend_price"`
	BestBorrowPrice   int64  `json:"best_borrow_price"`
	MidPrice          int64  `json:"mid_price"`
	LastFilledPrice   int64  `json:"last_filled_price"`
	TotalLendAmount   int64  `json:"total_lend_amount"`
	TotalBorrowAmount int64  `json:"total_borrow_amount"`
	PreOpening        int64  `json:"pre_opening"`
	Maturity          int64  `json:"maturity"`
}

// GetDetail returns the order book projection.
// GET /api/books/{id}
func (h *Handler) GetDetail(w http.ResponseWriter, r *http.Request) {
	bookID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid book id")
		return
	}

	d, err := h.svc.Detail(bookID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detailResponse{
		OrderBookID:       d.OrderBookID,
		State:             d.State.String(),
		BestLendPrice:     d.BestLendPrice,
		BestBorrowPrice:   d.BestBorrowPrice,
		MidPrice:          d.MidPrice,
		LastFilledPrice:   d.LastFilledPrice,
		TotalLendAmount:   d.TotalLendAmount,
		TotalBorrowAmount: d.TotalBorrowAmount,
		PreOpening:        d.PreOpening,
		Maturity:          d.Maturity,
	})
}

type fillResponse struct {
	MakerOrderID uint64 `json:"maker_order_id"`
	Maker        string `json:"maker"`
	Taker        string `json:"taker,omitempty"`
	Side         string `json:"side"`
	UnitPrice    int64  `json:"unit_price"`
	Amount       int64  `json:"amount"`
	FutureValue  int64  `json:"future_value"`
}

func fillResponses(fills []orderbook.Fill) []fillResponse {
	out := make([]fillResponse, 0, len(fills))
	for _, f := range fills {
		out = append(out, fillResponse{
			MakerOrderID: f.MakerOrderID,
			Maker:        f.Maker,
			Taker:        f.Taker,
			Side:         f.Side.String(),
			UnitPrice:    f.UnitPrice,
			Amount:       f.Amount,
			FutureValue:  f.FutureValue,
		})
	}
	return out
}

type placeOrderRequest struct {
	Side      string `json:"side"`
	UnitPrice int64  `json:"unit_price"`
	Amount    int64  `json:"amount"`
	Maker     string `json:"maker"`
}

type placeOrderResponse struct {
	OrderID           uint64         `json:"order_id"`
	Fills             []fillResponse `json:"fills"`
	FilledAmount      int64          `json:"filled_amount"`
	FilledFutureValue int64          `json:"filled_future_value"`
	RemainingAmount   int64          `json:"remaining_amount"`
	Resting           bool           `json:"resting"`
	IsPreOrder        bool           `json:"is_pre_order"`
}

// PlaceOrder submits a limit or market order. unit_price 0 means
// market.
// POST /api/books/{id}/orders
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	bookID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid book id")
		return
	}

	var req placeOrderRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	side, ok := parseSide(req.Side)
	if !ok {
		writeError(w, http.StatusBadRequest, "side must be LEND or BORROW")
		return
	}
	if req.Maker == "" {
		writeError(w, http.StatusBadRequest, "maker must not be empty")
		return
	}

	res, err := h.svc.PlaceOrder(bookID, side, req.UnitPrice, req.Amount, req.Maker)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, placeOrderResponse{
		OrderID:           res.OrderID,
		Fills:             fillResponses(res.Fills),
		FilledAmount:      res.FilledAmount,
		FilledFutureValue: res.FilledFutureValue,
		RemainingAmount:   res.RemainingAmount,
		Resting:           res.Resting,
		IsPreOrder:        res.IsPreOrder,
	})
}

type orderResponse struct {
	OrderID    uint64 `json:"order_id"`
	Side       string `json:"side"`
	UnitPrice  int64  `json:"unit_price"`
	Amount     int64  `json:"amount"`
	Maker      string `json:"maker"`
	IsPreOrder bool   `json:"is_pre_order"`
}

// GetOrder returns one resting order.
// GET /api/books/{id}/orders/{orderID}
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	bookID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid book id")
		return
	}
	orderID, err := pathID(r, "orderID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	o, err := h.svc.GetOrder(bookID, orderID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orderResponse{
		OrderID:    o.ID,
		Side:       o.Side.String(),
		UnitPrice:  o.UnitPrice,
		Amount:     o.Amount,
		Maker:      o.Maker,
		IsPreOrder: o.IsPreOrder,
	})
}

// CancelOrder removes a resting order. The caller must be the maker.
// DELETE /api/books/{id}/orders/{orderID}?caller=alice
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	bookID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid book id")
		return
	}
	orderID, err := pathID(r, "orderID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}
	caller := r.URL.Query().Get("caller")
	if caller == "" {
		writeError(w, http.StatusBadRequest, "caller must not be empty")
		return
	}

	o, err := h.svc.CancelOrder(bookID, orderID, caller)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orderResponse{
		OrderID:    o.ID,
		Side:       o.Side.String(),
		UnitPrice:  o.UnitPrice,
		Amount:     o.Amount,
		Maker:      o.Maker,
		IsPreOrder: o.IsPreOrder,
	})
}

// BestPrices returns the most aggressive price on each side, zero
// when the side is empty.
// GET /api/books/{id}/prices
func (h *Handler) BestPrices(w http.ResponseWriter, r *http.Request) {
	bookID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid book id")
		return
	}

	lend, err := h.svc.BestLendPrice(bookID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	borrow, err := h.svc.BestBorrowPrice(bookID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{
		"best_lend_price":   lend,
		"best_borrow_price": borrow,
	})
}

type unwindRequest struct {
	Maker          string `json:"maker"`
	NetFutureValue int64  `json:"net_future_value"`
}

type unwindResponse struct {
	Side                 string         `json:"side"`
	Fills                []fillResponse `json:"fills"`
	FilledAmount         int64          `json:"filled_amount"`
	FilledFutureValue    int64          `json:"filled_future_value"`
	RemainingFutureValue int64          `json:"remaining_future_value"`
}

// UnwindPosition offsets a position measured in future value.
// POST /api/books/{id}/unwind
func (h *Handler) UnwindPosition(w http.ResponseWriter, r *http.Request) {
	bookID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid book id")
		return
	}

	var req unwindRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Maker == "" {
		writeError(w, http.StatusBadRequest, "maker must not be empty")
		return
	}

	res, err := h.svc.UnwindPosition(bookID, req.Maker, req.NetFutureValue)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, unwindResponse{
		Side:                 res.Side.String(),
		Fills:                fillResponses(res.Fills),
		FilledAmount:         res.FilledAmount,
		FilledFutureValue:    res.FilledFutureValue,
		RemainingFutureValue: res.RemainingFutureValue,
	})
}

type itayoseResponse struct {
	ClearingPrice int64          `json:"clearing_price"`
	MatchedAmount int64          `json:"matched_amount"`
	Fills         []fillResponse `json:"fills"`
	Opened        bool           `json:"opened"`
}

// RunItayose executes the opening auction.
// POST /api/books/{id}/itayose
func (h *Handler) RunItayose(w http.ResponseWriter, r *http.Request) {
	bookID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid book id")
		return
	}

	res, err := h.svc.RunItayose(bookID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, itayoseResponse{
		ClearingPrice: res.ClearingPrice,
		MatchedAmount: res.MatchedAmount,
		Fills:         fillResponses(res.Fills),
		Opened:        res.Opened,
	})
}

// Estimate previews how much of a target amount the book could fill
// without mutating anything.
// GET /api/books/{id}/estimate?side=LEND&target=100&limit_price=8000
func (h *Handler) Estimate(w http.ResponseWriter, r *http.Request) {
	bookID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid book id")
		return
	}

	q := r.URL.Query()
	side, ok := parseSide(q.Get("side"))
	if !ok {
		writeError(w, http.StatusBadRequest, "side must be LEND or BORROW")
		return
	}
	target, err := parseInt64(q.Get("target"))
	if err != nil || target <= 0 {
		writeError(w, http.StatusBadRequest, "target must be a positive integer")
		return
	}
	limitPrice := int64(0)
	if v := q.Get("limit_price"); v != "" {
		if limitPrice, err = parseInt64(v); err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit_price")
			return
		}
	}

	// a LEND taker consumes the borrow side from its minimum; a
	// BORROW taker consumes the lend side from its maximum
	var filled int64
	if side == orderbook.SideLend {
		filled, err = h.svc.EstimateDropFromFirst(bookID, target, limitPrice)
	} else {
		filled, err = h.svc.EstimateDropFromLast(bookID, target, limitPrice)
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"fillable_amount": filled})
}
