// Package api exposes the operational REST surface of the payment engine:
// wallet binding, payment scheduling and cancellation, contact registration,
// notification drains, and service statistics. Handlers translate HTTP
// requests into service calls and map error codes back to HTTP statuses.
package api
