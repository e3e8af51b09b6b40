// Package serde converts Kafka record values to and from rows.
//
// Avro values use the schema-registry wire framing shared by Confluent and
// Apicurio's compatibility mode: a zero magic byte, a big-endian 4-byte schema
// id, then the Avro binary body. JSON values are Debezium JSON envelopes with
// or without the schema/payload wrapper.
package serde
