// Package nats publishes silver records to NATS JetStream.
//
// NATS subject patterns:
//   - Case-sensitive, dot-separated, no spaces
//   - Max length: 255 bytes
//
// A record is published on its destination topic, optionally behind
// SubjectPrefix, so `silver.raw-TB_CB_LPCO` lands on the subject of the same
// name. The stream is created or updated on connect to capture Subjects.
//
// The record key and timestamp travel as the Silver-Key (base64) and
// Silver-Timestamp (RFC 3339) headers.
package nats
