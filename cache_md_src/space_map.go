// SPDX-License-Identifier: LGPL-2.1
// Copyright (C) 2021-2022 stu mark

package cache_md_src

import "github.com/nixomose/nixomosegotools/tools"

/* the core space map is nothing more than an in memory refcount table over
[0, nr_blocks). there is no persistent variant here, the read-only checker
never needs one, it only ever asks the transaction manager to read_lock,
never to shadow or allocate. Memory_store in the teacher is the same idea,
a bump allocated in-memory stand-in for a real backing store. */

type Core_space_map struct {
	log    *tools.Nixomosetools_logger
	counts []uint32
	cursor uint64
}

func New_core_space_map(l *tools.Nixomosetools_logger, nr_blocks uint64) *Core_space_map {
	var sm Core_space_map
	sm.log = l
	sm.counts = make([]uint32, nr_blocks)
	return &sm
}

func (this *Core_space_map) check_range(b uint64) tools.Ret {
	if b >= uint64(len(this.counts)) {
		return tools.Error(this.log, "block address out of range: ", b, " nr_blocks: ", len(this.counts))
	}
	return nil
}

func (this *Core_space_map) Get(b uint64) (tools.Ret, uint32) {
	if ret := this.check_range(b); ret != nil {
		return ret, 0
	}
	return nil, this.counts[b]
}

func (this *Core_space_map) Set(b uint64, n uint32) tools.Ret {
	if ret := this.check_range(b); ret != nil {
		return ret
	}
	this.counts[b] = n
	return nil
}

func (this *Core_space_map) Inc(b uint64) tools.Ret {
	if ret := this.check_range(b); ret != nil {
		return ret
	}
	this.counts[b]++
	return nil
}

func (this *Core_space_map) Dec(b uint64) tools.Ret {
	if ret := this.check_range(b); ret != nil {
		return ret
	}
	if this.counts[b] == 0 {
		return tools.Error(this.log, "refcount underflow at block: ", b)
	}
	this.counts[b]--
	return nil
}

// New_block scans forward from the last allocation for a zero refcount
// block, sets it to one and returns it. the found bool is false if the
// space map is completely full.
func (this *Core_space_map) New_block() (tools.Ret, uint64, bool) {
	var n = uint64(len(this.counts))
	for i := uint64(0); i < n; i++ {
		var pos = (this.cursor + i) % n
		if this.counts[pos] == 0 {
			this.counts[pos] = 1
			this.cursor = pos + 1
			return nil, pos, true
		}
	}
	return nil, 0, false
}

func (this *Core_space_map) Count_with(pred func(uint32) bool) uint64 {
	var total uint64
	for _, c := range this.counts {
		if pred(c) {
			total++
		}
	}
	return total
}
