package cache

import "github.com/go-mcpauth/mcpauth/internal/core"

// Cache is an alias for the shared cache interface in core.
// Defined there to avoid import cycles between cache users.
type Cache[T any] = core.Cache[T]
