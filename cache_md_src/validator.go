// SPDX-License-Identifier: LGPL-2.1
// Copyright (C) 2021-2022 stu mark

package cache_md_src

import (
	"encoding/binary"
	"hash/crc32"

	cache_md_lib "github.com/nixomose/cache_check/cache_md_interfaces"
	"github.com/nixomose/nixomosegotools/tools"
)

/* two validators. Noop_validator is an identity used for blocks whose
structure is checked some other way (or not at all). Node_validator
understands the one header layout every btree node and array/bitset leaf
shares (see btree_node.go): a 4 byte crc32 of the remainder of the block,
a 4 byte magic tag, and an 8 byte location field at a fixed offset, used
to catch a write that landed on the wrong block or belongs to a different
tree entirely. */

var crc32_table = crc32.MakeTable(crc32.Castagnoli)

func compute_checksum(buf []byte) uint32 {
	// checksum covers everything after the checksum word itself.
	return crc32.Checksum(buf[4:], crc32_table)
}

type Noop_validator struct{}

func (this Noop_validator) Check(buf []byte, location uint64) tools.Ret {
	return nil
}

func (this Noop_validator) Prepare(buf []byte, location uint64) {
}

var _ cache_md_lib.Validator = Noop_validator{}

// Node_validator checks the 32 byte header shared by btree nodes and
// array/bitset leaves: checksum @0, magic @4, location @8.
type Node_validator struct {
	log   *tools.Nixomosetools_logger
	magic uint32
}

func New_node_validator(l *tools.Nixomosetools_logger, magic uint32) *Node_validator {
	var v Node_validator
	v.log = l
	v.magic = magic
	return &v
}

func (this *Node_validator) Check(buf []byte, location uint64) tools.Ret {
	if uint32(len(buf)) < cache_md_lib.Block_size {
		return tools.Error(this.log, "block too short to validate, location: ", location)
	}

	var want = compute_checksum(buf)
	var got = binary.BigEndian.Uint32(buf[0:4])
	if want != got {
		return tools.Error(this.log, "bad checksum at location: ", location, " expected: ", want, " got: ", got)
	}

	var magic_field = binary.BigEndian.Uint32(buf[4:8])
	if magic_field != this.magic {
		return tools.Error(this.log, "bad magic at location: ", location, " expected: ", this.magic, " got: ", magic_field)
	}

	var loc_field = binary.BigEndian.Uint64(buf[8:16])
	if loc_field != location {
		return tools.Error(this.log, "misdirected write, block claims location: ", loc_field, " but was read from: ", location)
	}
	return nil
}

func (this *Node_validator) Prepare(buf []byte, location uint64) {
	binary.BigEndian.PutUint32(buf[4:8], this.magic)
	binary.BigEndian.PutUint64(buf[8:16], location)
	var sum = compute_checksum(buf)
	binary.BigEndian.PutUint32(buf[0:4], sum)
}

var _ cache_md_lib.Validator = &Node_validator{}
