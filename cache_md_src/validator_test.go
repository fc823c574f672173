// SPDX-License-Identifier: LGPL-2.1
// Copyright (C) 2021-2022 stu mark

package cache_md_src

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_node_validator_round_trip(t *testing.T) {
	var l = test_logger()
	var v = New_node_validator(l, Btree_magic)
	var buf = New_aligned_block()
	buf[20] = 0xab // some payload byte the checksum has to cover

	v.Prepare(buf, 7)
	require.Nil(t, v.Check(buf, 7))
}

func Test_node_validator_rejects_bad_checksum(t *testing.T) {
	var l = test_logger()
	var v = New_node_validator(l, Btree_magic)
	var buf = New_aligned_block()
	v.Prepare(buf, 7)
	buf[100] ^= 0xff

	require.NotNil(t, v.Check(buf, 7))
}

func Test_node_validator_rejects_wrong_magic(t *testing.T) {
	var l = test_logger()
	var v = New_node_validator(l, Mapping_array_magic)
	var buf = New_aligned_block()
	v.Prepare(buf, 7)

	var other = New_node_validator(l, Hint_array_magic)
	require.NotNil(t, other.Check(buf, 7))
}

func Test_node_validator_rejects_misdirected_write(t *testing.T) {
	var l = test_logger()
	var v = New_node_validator(l, Btree_magic)
	var buf = New_aligned_block()
	v.Prepare(buf, 7)

	require.NotNil(t, v.Check(buf, 8))
}

func Test_superblock_validator_round_trip(t *testing.T) {
	var l = test_logger()
	var v = New_superblock_validator(l)
	var buf = New_aligned_block()
	binary_put_test_field(buf)

	v.Prepare(buf, 0)
	require.Nil(t, v.Check(buf, 0))
}

func Test_superblock_validator_rejects_bad_checksum(t *testing.T) {
	var l = test_logger()
	var v = New_superblock_validator(l)
	var buf = New_aligned_block()
	v.Prepare(buf, 0)
	buf[500] ^= 0xff

	require.NotNil(t, v.Check(buf, 0))
}

func binary_put_test_field(buf []byte) {
	buf[16] = 0x01
}
