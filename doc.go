// Package trexport turns a brokerage account's raw timeline feed into a
// canonical portfolio ledger.
//
// The feed delivers two kinds of timeline records: activities (the
// account's notification stream) and transactions (actual financial
// movements, enriched on demand with a detail payload of "sections").
// Both are semi-structured and their shape has drifted over the life of
// the upstream API, so every record goes through a classification table
// that assigns it one member of a closed event type set, and the mapper
// tolerates the historical section layouts by trying the newest shape
// first.
//
// The pipeline is strictly one-directional:
//
//	raw feed -> classification -> synthetic augmentation -> detail
//	enrichment -> mapping -> canonical ledger
//
// The canonical ledger ([Ledger], a list of [Entry] values) is the sole
// artifact handed to exporters. All monetary and share arithmetic uses
// decimal values; binary floating point is never used for money.
//
// The subscription protocol driving the feed lives in the ingest
// subpackage; the websocket transport and document fetching live in the
// traderepublic subpackage.
package trexport
