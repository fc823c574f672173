// SPDX-License-Identifier: LGPL-2.1
// Copyright (C) 2021-2022 stu mark

package cache_md_src

import (
	"bytes"
	"strings"
	"testing"

	cache_md_lib "github.com/nixomose/cache_check/cache_md_interfaces"
	"github.com/stretchr/testify/require"
)

func Test_text_reporter_writes_one_line_per_problem(t *testing.T) {
	var buf bytes.Buffer
	var r = new_text_reporter(&buf, false)

	r.Visit_superblock_corrupt(cache_md_lib.Superblock_corrupt{Desc: "bad checksum"})
	r.Visit_missing_mappings(cache_md_lib.Missing_mappings{Keys: []uint32{3, 4}})

	var lines = strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], "bad checksum")
	require.Contains(t, lines[1], "missing 2 mapping")
}

func Test_text_reporter_quiet_writes_nothing(t *testing.T) {
	var buf bytes.Buffer
	var r = new_text_reporter(&buf, true)

	r.Visit_superblock_corrupt(cache_md_lib.Superblock_corrupt{Desc: "bad checksum"})
	r.Visit_bad_node(cache_md_lib.Bad_node{Location: 7, Desc: "checksum mismatch"})

	require.Empty(t, buf.String())
}

func Test_new_text_visitors_fills_every_slot(t *testing.T) {
	var visitors = New_text_visitors(&bytes.Buffer{}, false)
	require.NotNil(t, visitors.Superblock)
	require.NotNil(t, visitors.Mapping_array)
	require.NotNil(t, visitors.Hint_array)
	require.NotNil(t, visitors.Discard_bits)
	require.NotNil(t, visitors.Dirty_bits)
	require.NotNil(t, visitors.Btree)
}
