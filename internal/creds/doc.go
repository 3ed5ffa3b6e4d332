// Package creds persists consumer credentials and the obtained user access
// token to a tenant-private file, and merges persisted values with
// higher-priority runtime-supplied overrides.
//
// Only the single-process tenant uses this package. Session-scoped tenants
// created by the networked transport are ephemeral and never touch durable
// storage.
package creds
