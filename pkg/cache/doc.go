// Package cache provides the Redis-backed key-value cache shared by the
// content fetch, the Vimeo resolver and the asset mirror's redirect layer,
// together with deterministic cache-key derivation for content requests.
package cache
