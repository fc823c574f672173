// SPDX-License-Identifier: LGPL-2.1
// Copyright (C) 2021-2022 stu mark

// package name must match directory name
package cache_md_entry

import (
	"bytes"
	"encoding/binary"

	"github.com/nixomose/nixomosegotools/tools"
)

/* the mapping array's leaf values are (origin_block, flags) pairs, one per
cache block. this mirrors slookup_i_entry.go's approach to serializing a
fixed size on-disk record: a field by field big endian binary.Write into a
bytes.Buffer rather than a single struct tag write, since the mapping
array packs these back to back inside a leaf with no per-value length
prefix - Serialized_size has to be exact. */

const Mapping_flag_valid uint32 = 1 << 0

const Mapping_value_size uint32 = 12 // 8 byte origin block + 4 byte flags

type Mapping_value struct {
	log          *tools.Nixomosetools_logger
	Origin_block uint64
	Flags        uint32
}

func New_mapping_value(l *tools.Nixomosetools_logger, origin_block uint64, flags uint32) *Mapping_value {
	var m Mapping_value
	m.log = l
	m.Origin_block = origin_block
	m.Flags = flags
	return &m
}

func (this *Mapping_value) Is_valid() bool {
	return this.Flags&Mapping_flag_valid != 0
}

func (this *Mapping_value) Serialized_size() uint32 {
	return Mapping_value_size
}

func (this *Mapping_value) Serialize() (tools.Ret, *bytes.Buffer) {
	var bb = bytes.NewBuffer(make([]byte, 0, Mapping_value_size))
	binary.Write(bb, binary.BigEndian, this.Origin_block)
	binary.Write(bb, binary.BigEndian, this.Flags)
	return nil, bb
}

func (this *Mapping_value) Deserialize(l *tools.Nixomosetools_logger, bs []byte) tools.Ret {
	if uint32(len(bs)) < Mapping_value_size {
		return tools.Error(l, "mapping value buffer too short, need: ", Mapping_value_size, " got: ", len(bs))
	}
	this.log = l
	this.Origin_block = binary.BigEndian.Uint64(bs[0:8])
	this.Flags = binary.BigEndian.Uint32(bs[8:12])
	return nil
}
