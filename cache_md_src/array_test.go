// SPDX-License-Identifier: LGPL-2.1
// Copyright (C) 2021-2022 stu mark

package cache_md_src

import (
	"testing"

	cache_md_lib "github.com/nixomose/cache_check/cache_md_interfaces"
	"github.com/stretchr/testify/require"
)

type fake_mapping_visitor struct {
	missing []cache_md_lib.Missing_mappings
	invalid []cache_md_lib.Invalid_mapping
}

func (this *fake_mapping_visitor) Visit_missing_mappings(d cache_md_lib.Missing_mappings) {
	this.missing = append(this.missing, d)
}
func (this *fake_mapping_visitor) Visit_invalid_mapping(d cache_md_lib.Invalid_mapping) {
	this.invalid = append(this.invalid, d)
}

var _ cache_md_lib.Mapping_array_damage_visitor = &fake_mapping_visitor{}

func Test_mapping_array_dense_is_clean(t *testing.T) {
	var l = test_logger()
	var path = new_test_device(t, 4)
	var ret, io = Open_block_io(l, path, true)
	require.Nil(t, ret)
	var bm = New_block_manager(l, io)
	var v = New_node_validator(l, Mapping_array_magic)

	var leaf = build_btree_leaf(3, 3, 12, []uint64{0, 1, 2},
		[][]byte{mapping_value_bytes(100, 1), mapping_value_bytes(101, 1), mapping_value_bytes(102, 1)})
	write_raw_block(t, bm, 1, v, leaf)

	var tm = New_transaction_manager(l, bm, New_core_space_map(l, bm.Get_nr_blocks()))
	var ma = New_mapping_array(l, tm, 1, 3, 1000)
	var visitor fake_mapping_visitor
	ret = ma.Check(nil, &visitor)
	require.Nil(t, ret)
	require.Empty(t, visitor.missing)
	require.Empty(t, visitor.invalid)
}

func Test_mapping_array_reports_missing_index(t *testing.T) {
	var l = test_logger()
	var path = new_test_device(t, 4)
	var ret, io = Open_block_io(l, path, true)
	require.Nil(t, ret)
	var bm = New_block_manager(l, io)
	var v = New_node_validator(l, Mapping_array_magic)

	// declares cache_blocks=10 but only ships entries 0..8, matching S5.
	var leaf = build_btree_leaf(9, 9, 12,
		[]uint64{0, 1, 2, 3, 4, 5, 6, 7, 8},
		[][]byte{
			mapping_value_bytes(0, 1), mapping_value_bytes(1, 1), mapping_value_bytes(2, 1),
			mapping_value_bytes(3, 1), mapping_value_bytes(4, 1), mapping_value_bytes(5, 1),
			mapping_value_bytes(6, 1), mapping_value_bytes(7, 1), mapping_value_bytes(8, 1),
		})
	write_raw_block(t, bm, 1, v, leaf)

	var tm = New_transaction_manager(l, bm, New_core_space_map(l, bm.Get_nr_blocks()))
	var ma = New_mapping_array(l, tm, 1, 10, 0)
	var visitor fake_mapping_visitor
	ret = ma.Check(nil, &visitor)
	require.Nil(t, ret)
	require.Len(t, visitor.missing, 1)
	require.Equal(t, []uint32{9}, visitor.missing[0].Keys)
}

func Test_mapping_array_reports_out_of_range_origin(t *testing.T) {
	var l = test_logger()
	var path = new_test_device(t, 4)
	var ret, io = Open_block_io(l, path, true)
	require.Nil(t, ret)
	var bm = New_block_manager(l, io)
	var v = New_node_validator(l, Mapping_array_magic)

	var leaf = build_btree_leaf(1, 1, 12, []uint64{0}, [][]byte{mapping_value_bytes(999999, 1)})
	write_raw_block(t, bm, 1, v, leaf)

	var tm = New_transaction_manager(l, bm, New_core_space_map(l, bm.Get_nr_blocks()))
	var ma = New_mapping_array(l, tm, 1, 1, 100)
	var visitor fake_mapping_visitor
	ret = ma.Check(nil, &visitor)
	require.Nil(t, ret)
	require.Len(t, visitor.invalid, 1)
	require.Equal(t, uint32(0), visitor.invalid[0].Cblock)
}

type fake_bitset_visitor struct {
	missing []cache_md_lib.Missing_bits
}

func (this *fake_bitset_visitor) Visit_missing_bits(d cache_md_lib.Missing_bits) {
	this.missing = append(this.missing, d)
}

var _ cache_md_lib.Bitset_damage_visitor = &fake_bitset_visitor{}

func Test_bitset_reports_missing_word(t *testing.T) {
	var l = test_logger()
	var path = new_test_device(t, 4)
	var ret, io = Open_block_io(l, path, true)
	require.Nil(t, ret)
	var bm = New_block_manager(l, io)
	var v = New_node_validator(l, Bitset_magic)

	// nr_entries=128 needs word indices 0 and 1; only word 0 present.
	var word0 = make([]byte, 8)
	word0[0] = 0xff
	var leaf = build_btree_leaf(1, 1, 8, []uint64{0}, [][]byte{word0})
	write_raw_block(t, bm, 1, v, leaf)

	var tm = New_transaction_manager(l, bm, New_core_space_map(l, bm.Get_nr_blocks()))
	var bs = New_bitset(l, tm, 1, 128)
	var visitor fake_bitset_visitor
	ret = bs.Check(nil, &visitor)
	require.Nil(t, ret)
	require.Len(t, visitor.missing, 1)
	require.Equal(t, []uint32{1}, visitor.missing[0].Keys)
}

func Test_bitset_get_reads_individual_bit(t *testing.T) {
	var l = test_logger()
	var path = new_test_device(t, 4)
	var ret, io = Open_block_io(l, path, true)
	require.Nil(t, ret)
	var bm = New_block_manager(l, io)
	var v = New_node_validator(l, Bitset_magic)

	var word0 = make([]byte, 8)
	word0[0] = 0x05 // bits 0 and 2 set
	var leaf = build_btree_leaf(1, 1, 8, []uint64{0}, [][]byte{word0})
	write_raw_block(t, bm, 1, v, leaf)

	var tm = New_transaction_manager(l, bm, New_core_space_map(l, bm.Get_nr_blocks()))
	var bs = New_bitset(l, tm, 1, 64)

	var bit_ret, bit0 = bs.Get(0)
	require.Nil(t, bit_ret)
	require.True(t, bit0)

	var _, bit1 = bs.Get(1)
	require.False(t, bit1)

	var _, bit2 = bs.Get(2)
	require.True(t, bit2)
}
