// SPDX-License-Identifier: LGPL-2.1
// Copyright (C) 2021-2022 stu mark

package cache_md_src

import (
	cache_md_lib "github.com/nixomose/cache_check/cache_md_interfaces"
	"github.com/nixomose/nixomosegotools/tools"
)

/* the transaction manager composes the block manager with a space map to
give copy-on-write shadowing: turning a write-lock-with-intent-to-modify
into a new block address and bumping refcounts. the read only metadata
checker only ever calls Read_lock on this, Shadow and New_block exist
because a complete metadata engine needs them even though the check path
doesn't reach them - this mirrors the way Tlog wraps the backing store
interface and narrows what it exposes to its caller. */

type Transaction_manager struct {
	log *tools.Nixomosetools_logger
	bm  *Block_manager
	sm  *Core_space_map
}

func New_transaction_manager(l *tools.Nixomosetools_logger, bm *Block_manager, sm *Core_space_map) *Transaction_manager {
	var tm Transaction_manager
	tm.log = l
	tm.bm = bm
	tm.sm = sm
	return &tm
}

func (this *Transaction_manager) Read_lock(b uint64, v cache_md_lib.Validator) (tools.Ret, Read_ref) {
	return this.bm.Read_lock(b, v)
}

// Shadow returns a write lock on a block the caller intends to modify. if
// nothing else references b it is modified in place (false). otherwise a
// fresh block is allocated, the contents of b are copied into it, b's
// refcount is decremented and the new block's refcount is set to one
// (true) - the caller is expected to update whatever pointer led here to
// the new address.
func (this *Transaction_manager) Shadow(b uint64, v cache_md_lib.Validator) (tools.Ret, Write_ref, bool) {
	var ret tools.Ret
	var count uint32
	if ret, count = this.sm.Get(b); ret != nil {
		return ret, Write_ref{}, false
	}

	if count == 1 {
		var wr Write_ref
		if ret, wr = this.bm.Write_lock(b, v); ret != nil {
			return ret, Write_ref{}, false
		}
		return nil, wr, false
	}

	var rr Read_ref
	if ret, rr = this.bm.Read_lock(b, v); ret != nil {
		return ret, Write_ref{}, false
	}
	var original = make([]byte, len(rr.Data()))
	copy(original, rr.Data())
	if ret = rr.Release(); ret != nil {
		return ret, Write_ref{}, false
	}

	var new_loc uint64
	var found bool
	if ret, new_loc, found = this.sm.New_block(); ret != nil {
		return ret, Write_ref{}, false
	}
	if !found {
		return tools.Error(this.log, "space map exhausted, unable to shadow block: ", b), Write_ref{}, false
	}

	var wr Write_ref
	if ret, wr = this.bm.Write_lock_zero(new_loc, v); ret != nil {
		return ret, Write_ref{}, false
	}
	copy(wr.Data(), original)

	if ret = this.sm.Dec(b); ret != nil {
		return ret, Write_ref{}, false
	}
	if ret = this.sm.Set(new_loc, 1); ret != nil {
		return ret, Write_ref{}, false
	}

	return nil, wr, true
}

// New_block allocates a fresh, zeroed block with a refcount of one.
func (this *Transaction_manager) New_block(v cache_md_lib.Validator) (tools.Ret, Write_ref) {
	var ret tools.Ret
	var loc uint64
	var found bool
	if ret, loc, found = this.sm.New_block(); ret != nil {
		return ret, Write_ref{}
	}
	if !found {
		return tools.Error(this.log, "space map exhausted, unable to allocate a new block"), Write_ref{}
	}

	var wr Write_ref
	if ret, wr = this.bm.Write_lock_zero(loc, v); ret != nil {
		return ret, Write_ref{}
	}
	return nil, wr
}
