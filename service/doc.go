// Package service orchestrates the lending market engine: domain
// matching, the write-ahead log, the fill outbox, snapshots and
// metrics sit behind one mutex here.
//
// The service is the ONLY write entry point. Transports translate
// requests into service calls and never touch the domain directly.
// Solvency is the caller's contract: an order reaching PlaceOrder is
// assumed funded, the engine only matches.
package service
