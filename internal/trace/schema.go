package trace

import "fmt"

// Redis key pattern helpers
//
// All keys and channels are namespaced by session name so several runs can
// share one Redis server without seeing each other's traces.
//
// Key pattern: warren:{session}:{entity}[:{id}]
// Channel pattern: warren:{session}:{event_type}_events

// ObservationKey returns the Redis key of an observation hash.
// Pattern: warren:{session}:observation:{observation_id}
func ObservationKey(session, observationID string) string {
	return fmt.Sprintf("warren:%s:observation:%s", session, observationID)
}

// ObservationKeyPrefix returns the common prefix of all observation hashes.
func ObservationKeyPrefix(session string) string {
	return fmt.Sprintf("warren:%s:observation:", session)
}

// OrderKey returns the Redis key of the list holding observation ids in
// recording order.
// Pattern: warren:{session}:observations
func OrderKey(session string) string {
	return fmt.Sprintf("warren:%s:observations", session)
}

// SeqKey returns the Redis key of the sequence counter.
// Pattern: warren:{session}:seq
func SeqKey(session string) string {
	return fmt.Sprintf("warren:%s:seq", session)
}

// ObservationEventsChannel returns the Pub/Sub channel new observations are
// published on.
// Pattern: warren:{session}:observation_events
func ObservationEventsChannel(session string) string {
	return fmt.Sprintf("warren:%s:observation_events", session)
}
