/*
Package events provides an in-memory event broker for load-driver progress
notifications. The load driver publishes phase.started, user.spawned,
user.completed, pool.exhausted, and run.completed events; a CLI or test
harness subscribes to observe a run without polling trace state.

Subscribers receive a buffered channel of *Event; a full subscriber
buffer drops events for that subscriber rather than blocking the
broker.
*/
package events
