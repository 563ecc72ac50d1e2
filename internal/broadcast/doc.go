// Package broadcast fans envelopes out to open connections.
//
// The Engine serialises each event once and enqueues the bytes on every recipient's Writer without
// blocking. Per-connection Writer goroutines own the socket writes, so one slow client never
// stalls a broadcast; a full send queue is reported back as a failed delivery.
package broadcast
