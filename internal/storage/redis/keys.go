package redis

import (
	"fmt"

	"github.com/scorekeep/scorekeep/internal/model"
)

// Key prefix for all identity-engine data
const keyPrefix = "scorekeep"

// Key generation functions for each entity type

// identityKey returns the Redis key for an Identity
func identityKey(id model.IdentityID) string {
	return fmt.Sprintf("%s:identity:%s", keyPrefix, id)
}

// nameIndexKey returns the Redis key for the normalized_name -> identity_id
// index; these keys are created with SETNX and are the name-uniqueness
// constraint for active identities
func nameIndexKey(normalized string) string {
	return fmt.Sprintf("%s:idx:name:%s", keyPrefix, normalized)
}

// userIndexKey returns the Redis key for the user_id -> identity_id index;
// created with SETNX, it is the one-identity-per-user constraint
func userIndexKey(userID model.UserID) string {
	return fmt.Sprintf("%s:idx:user:%s", keyPrefix, userID)
}

// identitySetKey returns the Redis key for the SET of all identity IDs
func identitySetKey() string {
	return fmt.Sprintf("%s:idx:identities", keyPrefix)
}

// userKey returns the Redis key for a User
func userKey(id model.UserID) string {
	return fmt.Sprintf("%s:user:%s", keyPrefix, id)
}

// usernameIndexKey returns the Redis key for the username -> user_id index
func usernameIndexKey(username string) string {
	return fmt.Sprintf("%s:idx:username:%s", keyPrefix, username)
}

// gameKey returns the Redis key for a GameRecord in a collection
func gameKey(collection string, id model.GameID) string {
	return fmt.Sprintf("%s:game:%s:%s", keyPrefix, collection, id)
}

// gamesByIdentityKey returns the Redis key for the SET of game keys in a
// collection that reference an identity
func gamesByIdentityKey(collection string, id model.IdentityID) string {
	return fmt.Sprintf("%s:idx:games:%s:%s", keyPrefix, collection, id)
}

// gamesByPreviousKey returns the Redis key for the SET of game keys in a
// collection whose player entries carry an identity as previousIdentityId
func gamesByPreviousKey(collection string, id model.IdentityID) string {
	return fmt.Sprintf("%s:idx:games_prev:%s:%s", keyPrefix, collection, id)
}

// taskKey returns the Redis key for a PropagationTask
func taskKey(id model.TaskID) string {
	return fmt.Sprintf("%s:task:%s", keyPrefix, id)
}

// outboxKey returns the Redis key for the ZSET of pending task IDs,
// scored by enqueue time
func outboxKey() string {
	return fmt.Sprintf("%s:outbox", keyPrefix)
}
