// SPDX-License-Identifier: LGPL-2.1
// Copyright (C) 2021-2022 stu mark

package cache_md_src

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	cache_md_lib "github.com/nixomose/cache_check/cache_md_interfaces"
	"github.com/nixomose/nixomosegotools/tools"
)

func test_logger() *tools.Nixomosetools_logger {
	return tools.New_Nixomosetools_logger(tools.DEBUG)
}

// new_test_device creates a zeroed, block-aligned regular file of
// nr_blocks blocks and returns its path. directio needs O_DIRECT
// alignment, which is why this pads to whole blocks rather than an
// arbitrary length.
func new_test_device(t *testing.T, nr_blocks uint64) string {
	t.Helper()
	var dir = t.TempDir()
	var path = filepath.Join(dir, "metadata.bin")
	var f, err = os.Create(path)
	if err != nil {
		t.Fatalf("unable to create test device: %v", err)
	}
	defer f.Close()
	if err = f.Truncate(int64(nr_blocks) * int64(cache_md_lib.Block_size)); err != nil {
		t.Fatalf("unable to size test device: %v", err)
	}
	return path
}

// build_btree_leaf hand assembles one block worth of a btree leaf: the
// shared 32 byte header (validator fills in checksum+magic on write, this
// only lays out the rest) followed by nr_max packed keys then nr_max
// packed values, matching btree_node.go's offset math exactly.
func build_btree_leaf(nr_entries uint32, nr_max uint32, value_size uint32, keys []uint64, values [][]byte) []byte {
	var buf = New_aligned_block()
	binary.BigEndian.PutUint32(buf[16:20], 0) // leaf: internal bit clear
	binary.BigEndian.PutUint32(buf[20:24], nr_entries)
	binary.BigEndian.PutUint32(buf[24:28], nr_max)
	binary.BigEndian.PutUint32(buf[28:32], value_size)

	for i, k := range keys {
		var off = btree_key_offset(uint32(i))
		binary.BigEndian.PutUint64(buf[off:off+8], k)
	}
	for i, v := range values {
		var off = btree_value_offset(nr_max, value_size, uint32(i))
		copy(buf[off:off+int(value_size)], v)
	}
	return buf
}

func build_btree_internal(nr_entries uint32, nr_max uint32, keys []uint64, children []uint64) []byte {
	var buf = New_aligned_block()
	binary.BigEndian.PutUint32(buf[16:20], btree_flag_internal)
	binary.BigEndian.PutUint32(buf[20:24], nr_entries)
	binary.BigEndian.PutUint32(buf[24:28], nr_max)
	binary.BigEndian.PutUint32(buf[28:32], 8)

	for i, k := range keys {
		var off = btree_key_offset(uint32(i))
		binary.BigEndian.PutUint64(buf[off:off+8], k)
	}
	for i, c := range children {
		var off = btree_value_offset(nr_max, 8, uint32(i))
		binary.BigEndian.PutUint64(buf[off:off+8], c)
	}
	return buf
}

func mapping_value_bytes(origin_block uint64, flags uint32) []byte {
	var v = make([]byte, 12)
	binary.BigEndian.PutUint64(v[0:8], origin_block)
	binary.BigEndian.PutUint32(v[8:12], flags)
	return v
}

// write_raw_block copies a pre-built block into a Write_lock_zero
// reference, runs v.Prepare on it to fill in checksum, magic and location,
// then releases and flushes it, for tests that need to plant hand built
// nodes at a location without going through the higher level codecs.
// tests that want a corrupt block damage it on disk afterwards.
func write_raw_block(t *testing.T, bm *Block_manager, location uint64, v cache_md_lib.Validator, buf []byte) {
	t.Helper()
	var ret, wr = bm.Write_lock_zero(location, Noop_validator{})
	if ret != nil {
		t.Fatalf("write_lock_zero failed: %v", ret.Get_errmsg())
	}
	copy(wr.Data(), buf)
	v.Prepare(wr.Data(), location)
	if ret = wr.Release(); ret != nil {
		t.Fatalf("release failed: %v", ret.Get_errmsg())
	}
	if ret = bm.Flush(); ret != nil {
		t.Fatalf("flush failed: %v", ret.Get_errmsg())
	}
}
