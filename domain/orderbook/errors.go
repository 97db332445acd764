package orderbook

import "errors"

var (
	ErrNoOrderExists    = errors.New("no order exists")
	ErrCallerNotMaker   = errors.New("caller is not the maker")
	ErrEmptyOrderBook   = errors.New("empty order book")
	ErrMarketNotOpen    = errors.New("market is not open")
	ErrMarketTerminated = errors.New("market is terminated")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidPrice     = errors.New("invalid unit price")
	ErrDuplicateOrderID = errors.New("duplicate order id")
)
