// Package optimistic applies a change to an in-memory collection before the
// remote write that backs it has finished, and puts the old value back if
// that write fails.
//
// A Coordinator owns no data. It is handed a Store (the collection and its
// setter) and, for every Update, the entity id, a patch and the remote call.
// The remote call is not retried or deduplicated, and concurrent updates are
// not serialized: two in-flight updates each snapshot whatever the collection
// held when they started, so a late revert can overwrite the other one's write.
package optimistic
