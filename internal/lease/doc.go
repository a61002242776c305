// Package lease implements the core of the session pool: the expiry
// reconciler, the allocation policy, and the service that drives both
// against the lease store on every request.
package lease
