// Package models defines the capsule data model shared by the codec, the
// registry and the lifecycle service.
package models
