// SPDX-License-Identifier: LGPL-2.1
// Copyright (C) 2021-2022 stu mark

package cache_md_src

import (
	"encoding/binary"

	cache_md_lib "github.com/nixomose/cache_check/cache_md_interfaces"
	"github.com/nixomose/nixomosegotools/tools"
)

/* the superblock is block 0 and the one structure with its own bespoke
layout rather than the generic btree node header - no location field, it
can only ever live at block 0, so its validator only ever checks the
checksum and magic. field layout is big endian per section 6:

	0:4   checksum
	4:8   magic
	8:12  version
	12:16 flags (bit 0 = NEEDS_CHECK)
	16:24 mapping_root
	24:32 hint_root      (0 if absent)
	32:40 discard_root   (0 if absent)
	40:48 dirty_root     (present iff version >= 2, else 0)
	48:52 cache_block_count
	52:60 discard_block_count
	60:64 policy_hint_size
	64:64+policy_name_size policy_name, NUL padded ascii
*/

const Superblock_magic uint32 = 0x63616368 // "cach"
const Superblock_version_1 uint32 = 1
const Superblock_version_2 uint32 = 2
const Superblock_flag_needs_check uint32 = 1 << 0
const superblock_policy_name_offset = 64
const superblock_policy_name_size = 16

type Superblock struct {
	Version             uint32
	Flags               uint32
	Mapping_root        uint64
	Hint_root           uint64
	Discard_root        uint64
	Dirty_root          uint64
	Cache_block_count   uint32
	Discard_block_count uint64
	Policy_hint_size    uint32
	Policy_name         string
}

func (this *Superblock) Needs_check() bool {
	return this.Flags&Superblock_flag_needs_check != 0
}

func (this *Superblock) Has_hint_root() bool {
	return this.Hint_root != 0
}

func (this *Superblock) Has_discard_root() bool {
	return this.Discard_root != 0
}

// Superblock_validator checks only the checksum and magic tag; block 0
// needs no misdirected-write check because it can never legitimately be
// read from anywhere else.
type Superblock_validator struct {
	log *tools.Nixomosetools_logger
}

func New_superblock_validator(l *tools.Nixomosetools_logger) *Superblock_validator {
	var v Superblock_validator
	v.log = l
	return &v
}

func (this *Superblock_validator) Check(buf []byte, location uint64) tools.Ret {
	if uint32(len(buf)) < cache_md_lib.Block_size {
		return tools.Error(this.log, "block too short for a superblock")
	}
	var want = compute_checksum(buf)
	var got = binary.BigEndian.Uint32(buf[0:4])
	if want != got {
		return tools.Error(this.log, "superblock is corrupt, checksum mismatch, expected: ", want, " got: ", got)
	}
	var magic = binary.BigEndian.Uint32(buf[4:8])
	if magic != Superblock_magic {
		return tools.Error(this.log, "superblock is invalid, bad magic: ", magic)
	}
	return nil
}

func (this *Superblock_validator) Prepare(buf []byte, location uint64) {
	binary.BigEndian.PutUint32(buf[4:8], Superblock_magic)
	var sum = compute_checksum(buf)
	binary.BigEndian.PutUint32(buf[0:4], sum)
}

var _ cache_md_lib.Validator = &Superblock_validator{}

func decode_superblock(l *tools.Nixomosetools_logger, buf []byte) (tools.Ret, Superblock) {
	var sb Superblock
	if uint32(len(buf)) < cache_md_lib.Block_size {
		return tools.Error(l, "block too short for a superblock"), sb
	}

	sb.Version = binary.BigEndian.Uint32(buf[8:12])
	sb.Flags = binary.BigEndian.Uint32(buf[12:16])
	sb.Mapping_root = binary.BigEndian.Uint64(buf[16:24])
	sb.Hint_root = binary.BigEndian.Uint64(buf[24:32])
	sb.Discard_root = binary.BigEndian.Uint64(buf[32:40])
	sb.Dirty_root = binary.BigEndian.Uint64(buf[40:48])
	sb.Cache_block_count = binary.BigEndian.Uint32(buf[48:52])
	sb.Discard_block_count = binary.BigEndian.Uint64(buf[52:60])
	sb.Policy_hint_size = binary.BigEndian.Uint32(buf[60:64])

	var name_bytes = buf[superblock_policy_name_offset : superblock_policy_name_offset+superblock_policy_name_size]
	var nul = len(name_bytes)
	for i, b := range name_bytes {
		if b == 0 {
			nul = i
			break
		}
	}
	sb.Policy_name = string(name_bytes[:nul])

	if sb.Version >= Superblock_version_2 {
		// dirty_root already decoded above unconditionally; version 1
		// images never populate it so it reads back as zero.
	} else {
		sb.Dirty_root = 0
	}

	return nil, sb
}

func encode_superblock(buf []byte, sb Superblock) {
	binary.BigEndian.PutUint32(buf[8:12], sb.Version)
	binary.BigEndian.PutUint32(buf[12:16], sb.Flags)
	binary.BigEndian.PutUint64(buf[16:24], sb.Mapping_root)
	binary.BigEndian.PutUint64(buf[24:32], sb.Hint_root)
	binary.BigEndian.PutUint64(buf[32:40], sb.Discard_root)
	var dirty_root uint64
	if sb.Version >= Superblock_version_2 {
		dirty_root = sb.Dirty_root
	}
	binary.BigEndian.PutUint64(buf[40:48], dirty_root)
	binary.BigEndian.PutUint32(buf[48:52], sb.Cache_block_count)
	binary.BigEndian.PutUint64(buf[52:60], sb.Discard_block_count)
	binary.BigEndian.PutUint32(buf[60:64], sb.Policy_hint_size)

	var name_bytes = make([]byte, superblock_policy_name_size)
	copy(name_bytes, sb.Policy_name)
	copy(buf[superblock_policy_name_offset:superblock_policy_name_offset+superblock_policy_name_size], name_bytes)
}

// Read_superblock reads and validates block 0, returning its decoded
// fields. the read lock it takes on block 0 is released before it
// returns.
func Read_superblock(l *tools.Nixomosetools_logger, bm *Block_manager) (tools.Ret, Superblock) {
	var v = New_superblock_validator(l)
	var ret, rr = bm.Read_lock(0, v)
	if ret != nil {
		return ret, Superblock{}
	}
	defer rr.Release()

	return decode_superblock(l, rr.Data())
}

// Write_superblock rewrites block 0 in place and commits it via the two
// phase superblock protocol, used by the clear-needs-check-on-success
// path.
func Write_superblock(l *tools.Nixomosetools_logger, bm *Block_manager, sb Superblock) tools.Ret {
	var v = New_superblock_validator(l)
	var ret, wr = bm.Superblock(0, v)
	if ret != nil {
		return ret
	}
	encode_superblock(wr.Data(), sb)
	return wr.Commit()
}
