// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package affinity pins the calling goroutine's OS thread to one CPU so
// that samples are not spread across cores with different clocks or
// cache state.
package affinity

import "errors"

var (
	// ErrUnsupported is returned on platforms without thread affinity.
	ErrUnsupported = errors.New("cpu pinning is not supported on this platform")

	// ErrInvalidCPU is returned for a negative CPU index.
	ErrInvalidCPU = errors.New("cpu index must be non-negative")
)
