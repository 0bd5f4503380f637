// Package messaging moves events between the OTP issuer and the delivery
// side without committing to a broker.
//
// One driver is active at a time, selected through configuration: Kafka,
// NATS, NSQ or Google Pub/Sub. Publish and Consume share a neutral message
// shape, and consume options carry every driver's naming scheme (group,
// channel, queue group, subscription) so callers can set them all and let
// the active driver pick the one it understands.
package messaging
