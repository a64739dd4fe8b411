// Package events provides an in-process, channel-keyed pub/sub broker.
//
// It plays two roles in switchorch: the BoltDB database double uses it to
// emulate the Redis backend's per-table pub/sub notifications so a Consumer can subscribe the same
// way against either backend, and a response.Publisher uses it as the
// transport for its per-table "*_RESPONSE_CHANNEL" notifications when
// running against that double. Delivery is best-effort per subscriber
// (slow subscribers drop messages rather than stall the broker), matching
// how Redis pub/sub itself behaves for a client that falls behind.
package events
