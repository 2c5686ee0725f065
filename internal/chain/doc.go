// Package chain houses blockchain connectivity utilities for the payment
// engine, including the client abstraction, gas fee estimation, and
// multi-chain configuration helpers. It lets the dispatcher interact with
// EVM compatible networks such as Ethereum mainnet and Sepolia through a
// uniform interface covering balance queries, nonce tracking, and batched
// transaction submission.
package chain
