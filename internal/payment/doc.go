// Package payment implements the scheduled-payment execution engine: the
// persistent payment record and its store, the aggregate balance pre-flight,
// the transaction builder and dispatcher with batch nonce sequencing, the
// due-payment scanner, and the user-facing scheduling service. Records are a
// small state machine; only the dispatcher and explicit cancellation mutate
// the next-execution time and the active flag.
package payment
