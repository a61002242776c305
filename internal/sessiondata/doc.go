// Package sessiondata loads the cookie/local-storage blobs the external
// verifier stores per session. Two backends exist: the on-disk layout
// the verifier writes natively, and Redis for deployments where the
// verifier and the pool do not share a filesystem.
package sessiondata
