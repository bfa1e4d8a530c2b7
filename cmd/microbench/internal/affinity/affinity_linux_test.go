// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

//go:build linux

package affinity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPin_RestoresAffinity(t *testing.T) {
	before, err := Allowed()
	require.NoError(t, err)
	require.NotEmpty(t, before)

	unpin, err := Pin(before[0])
	require.NoError(t, err)

	pinned, err := Allowed()
	require.NoError(t, err)
	assert.Equal(t, []int{before[0]}, pinned)

	unpin()

	after, err := Allowed()
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestPin_Invalid(t *testing.T) {
	_, err := Pin(-1)
	assert.ErrorIs(t, err, ErrInvalidCPU)
}
