// SPDX-License-Identifier: LGPL-2.1
// Copyright (C) 2021-2022 stu mark

package cache_md_lib_test

import (
	"testing"

	cache_md_lib "github.com/nixomose/cache_check/cache_md_interfaces"
	"github.com/stretchr/testify/require"
)

func Test_combine_errors_is_max(t *testing.T) {
	require.Equal(t, cache_md_lib.Non_fatal, cache_md_lib.Combine_errors(cache_md_lib.No_error, cache_md_lib.Non_fatal))
	require.Equal(t, cache_md_lib.Fatal, cache_md_lib.Combine_errors(cache_md_lib.Non_fatal, cache_md_lib.Fatal))
	require.Equal(t, cache_md_lib.Fatal, cache_md_lib.Combine_errors(cache_md_lib.Fatal, cache_md_lib.No_error))
}

func Test_combine_errors_is_commutative(t *testing.T) {
	var levels = []cache_md_lib.Error_state{cache_md_lib.No_error, cache_md_lib.Non_fatal, cache_md_lib.Fatal}
	for _, a := range levels {
		for _, b := range levels {
			require.Equal(t, cache_md_lib.Combine_errors(a, b), cache_md_lib.Combine_errors(b, a))
		}
	}
}

func Test_combine_errors_is_associative(t *testing.T) {
	var levels = []cache_md_lib.Error_state{cache_md_lib.No_error, cache_md_lib.Non_fatal, cache_md_lib.Fatal}
	for _, a := range levels {
		for _, b := range levels {
			for _, c := range levels {
				var left = cache_md_lib.Combine_errors(cache_md_lib.Combine_errors(a, b), c)
				var right = cache_md_lib.Combine_errors(a, cache_md_lib.Combine_errors(b, c))
				require.Equal(t, left, right)
			}
		}
	}
}

func Test_combine_errors_is_idempotent(t *testing.T) {
	var levels = []cache_md_lib.Error_state{cache_md_lib.No_error, cache_md_lib.Non_fatal, cache_md_lib.Fatal}
	for _, a := range levels {
		require.Equal(t, a, cache_md_lib.Combine_errors(a, a))
	}
}

func Test_no_error_is_identity(t *testing.T) {
	var levels = []cache_md_lib.Error_state{cache_md_lib.No_error, cache_md_lib.Non_fatal, cache_md_lib.Fatal}
	for _, a := range levels {
		require.Equal(t, a, cache_md_lib.Combine_errors(a, cache_md_lib.No_error))
	}
}

func Test_succeeds_default_policy_requires_no_error(t *testing.T) {
	require.True(t, cache_md_lib.No_error.Succeeds(false))
	require.False(t, cache_md_lib.Non_fatal.Succeeds(false))
	require.False(t, cache_md_lib.Fatal.Succeeds(false))
}

func Test_succeeds_skip_nonfatal_treats_nonfatal_as_success(t *testing.T) {
	require.True(t, cache_md_lib.No_error.Succeeds(true))
	require.True(t, cache_md_lib.Non_fatal.Succeeds(true))
	require.False(t, cache_md_lib.Fatal.Succeeds(true))
}
