package redis

import "fmt"

// Key prefix for all account data
const keyPrefix = "accountsvc"

// accountKey returns the Redis key holding the JSON account record
func accountKey(username string) string {
	return fmt.Sprintf("%s:account:%s", keyPrefix, username)
}

// tokenIndexKey returns the Redis key for the token -> username index
func tokenIndexKey(token string) string {
	return fmt.Sprintf("%s:idx:token:%s", keyPrefix, token)
}

// accountsSetKey returns the Redis key for the SET of all usernames
func accountsSetKey() string {
	return fmt.Sprintf("%s:idx:accounts", keyPrefix)
}

// sessionsSetKey returns the Redis key for the SET of usernames holding a session
func sessionsSetKey() string {
	return fmt.Sprintf("%s:idx:sessions", keyPrefix)
}
