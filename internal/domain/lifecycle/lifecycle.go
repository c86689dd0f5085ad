// Package lifecycle holds shared limits for fx start and stop hooks.
package lifecycle

import "time"

// DefaultTimeout bounds every start hook ping and every graceful shutdown.
const DefaultTimeout = 10 * time.Second
