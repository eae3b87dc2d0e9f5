// Package kafka publishes goSession audit events to a Kafka topic as JSON.
//
// [Sink] satisfies goSession.AuditSink. It is meant to sit behind the
// engine's asynchronous audit dispatcher, so a slow broker delays audit
// delivery but never a token operation.
package kafka
