// SPDX-License-Identifier: LGPL-2.1
// Copyright (C) 2021-2022 stu mark

package cache_md_src

import (
	"encoding/binary"

	"github.com/nixomose/nixomosegotools/tools"
)

/* every btree node and every array/bitset leaf in this format shares the
same 32 byte header, the same way slookup_i_header.go carves a fixed
header off the front of the store before the record area starts. layout,
big endian, matches Node_validator's offsets exactly:

	0:4   checksum   (crc32c of bytes 4 onward, see validator.go)
	4:8   magic
	8:16  location    (this block's own address, misdirected write check)
	16:20 flags       (bit 0 set => internal node, clear => leaf)
	20:24 nr_entries
	24:28 max_entries
	28:32 value_size  (bytes per value; 8 for an internal node's child ptr)

keys and values follow the header as two parallel packed arrays, each
sized by max_entries: max_entries 8 byte big endian key slots, then
max_entries value_size byte value slots, of which the first nr_entries of
each are in use (child block
addresses for an internal node, whatever the tree's value codec produces
for a leaf). */

const btree_header_size = 32
const btree_flag_internal uint32 = 1 << 0

const Btree_magic uint32 = 0x62747233     // "btr3"
const Mapping_array_magic uint32 = 0x6d6170 // "map"
const Hint_array_magic uint32 = 0x68696e74  // "hint"
const Bitset_magic uint32 = 0x62697473      // "bits"

type btree_node_header struct {
	Checksum    uint32
	Magic       uint32
	Location    uint64
	Flags       uint32
	Nr_entries  uint32
	Max_entries uint32
	Value_size  uint32
}

func (this *btree_node_header) is_internal() bool {
	return this.Flags&btree_flag_internal != 0
}

func decode_btree_header(l *tools.Nixomosetools_logger, buf []byte) (tools.Ret, btree_node_header) {
	var h btree_node_header
	if uint32(len(buf)) < btree_header_size {
		return tools.Error(l, "block too short for a btree node header"), h
	}
	h.Checksum = binary.BigEndian.Uint32(buf[0:4])
	h.Magic = binary.BigEndian.Uint32(buf[4:8])
	h.Location = binary.BigEndian.Uint64(buf[8:16])
	h.Flags = binary.BigEndian.Uint32(buf[16:20])
	h.Nr_entries = binary.BigEndian.Uint32(buf[20:24])
	h.Max_entries = binary.BigEndian.Uint32(buf[24:28])
	h.Value_size = binary.BigEndian.Uint32(buf[28:32])
	return nil, h
}

func btree_key_offset(i uint32) int {
	return btree_header_size + int(i)*8
}

func btree_value_offset(nr_max uint32, value_size uint32, i uint32) int {
	return btree_header_size + int(nr_max)*8 + int(i)*int(value_size)
}

func read_btree_key(buf []byte, i uint32) uint64 {
	var off = btree_key_offset(i)
	return binary.BigEndian.Uint64(buf[off : off+8])
}

func read_btree_child(buf []byte, h btree_node_header, i uint32) uint64 {
	var off = btree_value_offset(h.Max_entries, h.Value_size, i)
	return binary.BigEndian.Uint64(buf[off : off+8])
}
