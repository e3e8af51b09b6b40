// Package kafka runs the bronze to silver pipeline on Kafka.
//
// Runtime consumes the bronze topics of a pipeline.Topology as a consumer
// group named after the application id. Each claimed partition is handled
// sequentially and an offset is marked only after its silver record was
// published, so delivery is at least once. A handler error stops the group and
// is returned from Run.
//
// PeerKafka is the "kafka" sink connector. It publishes silver records with
// the bronze key and timestamp and can create missing silver topics.
//
// Kafka topic naming conventions:
// - Case-sensitive, no spaces
// - Valid chars: alphanumeric, `.`, `-`, `_`
// - Recommended max length: 249 bytes (to avoid potential issues)
//
// Configuration:
// - Replication Factor: Minimum 2 recommended for production
// - Number of Partitions: match the bronze topic to keep per-key ordering comparable
package kafka
