// Package blob re-exports core blob abstractions and is the only package
// allowed to construct the infra-backed implementations.
package blob

import (
	"roster/internal/blob/core"
)

type (
	// Driver identifies a blob backend driver.
	Driver = core.Driver
	// PutOptions configures a blob write.
	PutOptions = core.PutOptions
	// Info describes stored blob metadata.
	Info = core.Info
	// Store is the interface for blob storage backends.
	Store = core.Store
)

const (
	// DriverFilesystem is the local filesystem driver.
	DriverFilesystem = core.DriverFilesystem
	// DriverS3 is the S3-compatible driver.
	DriverS3 = core.DriverS3
	// DriverMemory is the in-memory test driver.
	DriverMemory = core.DriverMemory
)

var (
	// ErrExists reports a create-only Put collision.
	ErrExists = core.ErrExists
	// ErrNotFound reports an unknown key.
	ErrNotFound = core.ErrNotFound
)
