// Package pipeline wires bronze CDC topics to silver topics.
//
// A Task declares which bronze topics it reads and which source table each
// carries. The Manager configures every task into a Topology of per-topic
// handlers, gated by the enabled-topic list and the approval flag, and hands
// the Topology to a Runtime that consumes the topics and dispatches each
// record. Handlers publish through a Connector (Kafka, NATS, debug).
package pipeline
