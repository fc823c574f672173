// SPDX-License-Identifier: LGPL-2.1
// Copyright (C) 2021-2022 stu mark

package cache_md_src

import (
	cache_md_lib "github.com/nixomose/cache_check/cache_md_interfaces"
	"github.com/nixomose/nixomosegotools/tools"
	"golang.org/x/sync/errgroup"
)

/* the block manager is a cached, reference counted read/write lock on top
of the raw block io. a location holds either zero locks, N >= 1 read
locks, or exactly one write lock, tracked in held_locks. the cache keeps
recently used blocks around by location so repeat reads of, say, the root
of the mapping array don't hit the device every time; eviction only ever
touches blocks with zero outstanding references, and a dirty block is
flushed before it's dropped.

the superblock write reference is the odd one out: it is let go through
Commit, which runs the two phase commit in section 4.3, and a plain
Release of it is refused. every other write reference just marks itself
dirty and unlocks on Release. */

const default_cache_capacity = 256

type lock_kind int

const (
	lock_kind_read lock_kind = iota
	lock_kind_write
)

type lock_state struct {
	kind    lock_kind
	holders int
}

type block struct {
	location  uint64
	kind      cache_md_lib.Block_kind
	data      []byte
	validator cache_md_lib.Validator
	dirty     bool
}

type Block_manager struct {
	log        *tools.Nixomosetools_logger
	io         *Block_io
	cache      map[uint64]*block
	held_locks map[uint64]*lock_state
	capacity   int
}

func New_block_manager(l *tools.Nixomosetools_logger, io *Block_io) *Block_manager {
	var bm Block_manager
	bm.log = l
	bm.io = io
	bm.cache = make(map[uint64]*block)
	bm.held_locks = make(map[uint64]*lock_state)
	bm.capacity = default_cache_capacity
	return &bm
}

func (this *Block_manager) Get_nr_blocks() uint64 {
	return this.io.Get_nr_blocks()
}

/* Read_ref and Write_ref are the scoped handles. the *lock_state holder
count is the same entry held_locks points at, so releasing a copy of a
read ref (they're cheap to copy) is visible to every other copy. */

type Read_ref struct {
	bm  *Block_manager
	blk *block
	st  *lock_state
}

type Write_ref struct {
	Read_ref
}

func (this Read_ref) Get_location() uint64 {
	return this.blk.location
}

func (this Read_ref) Data() []byte {
	return this.blk.data
}

func (this Read_ref) Release() tools.Ret {
	return this.bm.release_lock(this.blk.location, this.st, false)
}

func (this Write_ref) Data() []byte {
	return this.blk.data
}

// Release marks the block dirty and unlocks it. for a superblock reference
// use Commit instead, releasing it plainly is a programming error.
func (this Write_ref) Release() tools.Ret {
	if this.blk.kind == cache_md_lib.Block_kind_superblock {
		return tools.Error(this.bm.log, "programming error: superblock write reference released without commit, location: ", this.blk.location)
	}
	this.blk.dirty = true
	return this.bm.release_lock(this.blk.location, this.st, false)
}

// Commit runs the superblock commit protocol: fail if any other lock is
// still outstanding anywhere, flush every other dirty block concurrently,
// then write the superblock synchronously last.
func (this Write_ref) Commit() tools.Ret {
	if this.blk.kind != cache_md_lib.Block_kind_superblock {
		return tools.Error(this.bm.log, "programming error: Commit called on a non superblock write reference, location: ", this.blk.location)
	}

	for loc, st := range this.bm.held_locks {
		if loc == this.blk.location {
			continue
		}
		if st.holders > 0 {
			return tools.Error(this.bm.log, "SuperblockUnlockedEarly: lock still held on location: ", loc, " while committing superblock")
		}
	}

	this.blk.dirty = true
	if ret := this.bm.flush_non_superblock(); ret != nil {
		return ret
	}

	this.blk.validator.Prepare(this.blk.data, this.blk.location)
	if ret := this.bm.io.Write_block(this.blk.location, this.blk.data); ret != nil {
		return ret
	}
	this.blk.dirty = false

	return this.bm.release_lock(this.blk.location, this.st, true)
}

func (this *Block_manager) release_lock(location uint64, st *lock_state, is_superblock bool) tools.Ret {
	st.holders--
	if st.holders < 0 {
		return tools.Error(this.log, "programming error: lock holder count went negative at location: ", location)
	}
	if st.holders == 0 {
		delete(this.held_locks, location)
	}
	return nil
}

func (this *Block_manager) get_or_load(location uint64, v cache_md_lib.Validator, zero bool) (tools.Ret, *block) {
	if location >= this.Get_nr_blocks() {
		return tools.Error(this.log, "location out of range: ", location, " nr_blocks: ", this.Get_nr_blocks()), nil
	}

	if b, ok := this.cache[location]; ok {
		return nil, b
	}

	var b block
	b.location = location
	b.validator = v
	if zero {
		b.data = New_aligned_block()
	} else {
		b.data = New_aligned_block()
		if ret := this.io.Read_block(location, b.data); ret != nil {
			return ret, nil
		}
		if ret := v.Check(b.data, location); ret != nil {
			return ret, nil
		}
	}

	this.cache[location] = &b
	this.evict_if_needed()
	return nil, &b
}

func (this *Block_manager) acquire(location uint64, kind lock_kind, v cache_md_lib.Validator, zero bool) (tools.Ret, *block, *lock_state) {
	if existing, ok := this.held_locks[location]; ok {
		if kind == lock_kind_read && existing.kind == lock_kind_read {
			existing.holders++
			return nil, this.cache[location], existing
		}
		return tools.Error(this.log, "lock conflict at location: ", location), nil, nil
	}

	var ret tools.Ret
	var b *block
	if ret, b = this.get_or_load(location, v, zero); ret != nil {
		return ret, nil, nil
	}

	var st = &lock_state{kind: kind, holders: 1}
	this.held_locks[location] = st
	return nil, b, st
}

func (this *Block_manager) Read_lock(location uint64, v cache_md_lib.Validator) (tools.Ret, Read_ref) {
	var ret, b, st = this.acquire(location, lock_kind_read, v, false)
	if ret != nil {
		return ret, Read_ref{}
	}
	return nil, Read_ref{bm: this, blk: b, st: st}
}

func (this *Block_manager) Write_lock(location uint64, v cache_md_lib.Validator) (tools.Ret, Write_ref) {
	var ret, b, st = this.acquire(location, lock_kind_write, v, false)
	if ret != nil {
		return ret, Write_ref{}
	}
	return nil, Write_ref{Read_ref{bm: this, blk: b, st: st}}
}

func (this *Block_manager) Write_lock_zero(location uint64, v cache_md_lib.Validator) (tools.Ret, Write_ref) {
	var ret, b, st = this.acquire(location, lock_kind_write, v, true)
	if ret != nil {
		return ret, Write_ref{}
	}
	return nil, Write_ref{Read_ref{bm: this, blk: b, st: st}}
}

func (this *Block_manager) Superblock(location uint64, v cache_md_lib.Validator) (tools.Ret, Write_ref) {
	var ret, wr = this.Write_lock(location, v)
	if ret != nil {
		return ret, Write_ref{}
	}
	wr.blk.kind = cache_md_lib.Block_kind_superblock
	return nil, wr
}

func (this *Block_manager) Superblock_zero(location uint64, v cache_md_lib.Validator) (tools.Ret, Write_ref) {
	var ret, wr = this.Write_lock_zero(location, v)
	if ret != nil {
		return ret, Write_ref{}
	}
	wr.blk.kind = cache_md_lib.Block_kind_superblock
	return nil, wr
}

// Flush synchronously writes back every dirty non-superblock block. exposed
// for callers that want a checkpoint without a full superblock commit.
func (this *Block_manager) Flush() tools.Ret {
	return this.flush_non_superblock()
}

func (this *Block_manager) flush_non_superblock() tools.Ret {
	var group errgroup.Group
	for _, b := range this.cache {
		var bb = b
		if !bb.dirty || bb.kind == cache_md_lib.Block_kind_superblock {
			continue
		}
		group.Go(func() error {
			bb.validator.Prepare(bb.data, bb.location)
			var ret = this.io.Write_block(bb.location, bb.data)
			if ret != nil {
				return ret
			}
			bb.dirty = false
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return tools.Error(this.log, "error flushing dirty blocks: ", err)
	}
	return nil
}

func (this *Block_manager) evict_if_needed() {
	if len(this.cache) <= this.capacity {
		return
	}
	for loc, b := range this.cache {
		if _, held := this.held_locks[loc]; held {
			continue
		}
		if b.dirty {
			b.validator.Prepare(b.data, b.location)
			if ret := this.io.Write_block(b.location, b.data); ret != nil {
				this.log.Debug("eviction write back failed for location: ", loc, " ret: ", ret.Get_errmsg())
				continue
			}
		}
		delete(this.cache, loc)
		if len(this.cache) <= this.capacity {
			return
		}
	}
}
