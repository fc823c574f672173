// SPDX-License-Identifier: LGPL-2.1
// Copyright (C) 2021-2022 stu mark

package cache_md_src

import (
	cache_md_lib "github.com/nixomose/cache_check/cache_md_interfaces"
	"github.com/nixomose/nixomosegotools/tools"
)

/* read only btree walk. this is the Go shape of cache_check.cc's
btree_checker<>::check: descend from the root validating each node's
header and key ordering as it goes, and instead of aborting the whole
walk on the first bit of damage, report it to the visitor and skip just
that subtree - so a single pass can surface every problem in the tree
rather than stopping at the first one. */

// Btree_leaf_fn is called once per (key, raw value bytes) pair found in
// key order across every reachable, undamaged leaf.
type Btree_leaf_fn func(key uint64, value []byte)

type BTree struct {
	log   *tools.Nixomosetools_logger
	tm    *Transaction_manager
	root  uint64
	magic uint32
}

func New_btree(l *tools.Nixomosetools_logger, tm *Transaction_manager, root uint64, magic uint32) *BTree {
	var t BTree
	t.log = l
	t.tm = tm
	t.root = root
	t.magic = magic
	return &t
}

// Walk visits every leaf value reachable from the root in ascending key
// order, reporting structural damage to visitor rather than returning an
// error for it. a non-nil tools.Ret return is reserved for i/o and
// programming errors, not content damage.
func (this *BTree) Walk(visitor cache_md_lib.Btree_damage_visitor, fn Btree_leaf_fn) tools.Ret {
	return this.walk_node(this.root, 0, ^uint64(0), visitor, fn)
}

// walk_node descends into location, restricting itself to keys in
// [low, high]. an out of range key is reported as Unexpected_key and that
// entry (for an internal node, the child subtree under it) is skipped;
// the walk carries on with the node's remaining entries.
func (this *BTree) walk_node(location uint64, low uint64, high uint64, visitor cache_md_lib.Btree_damage_visitor, fn Btree_leaf_fn) tools.Ret {
	var v = New_node_validator(this.log, this.magic)
	var ret tools.Ret
	var rr Read_ref
	if ret, rr = this.tm.Read_lock(location, v); ret != nil {
		if visitor != nil {
			visitor.Visit_bad_node(cache_md_lib.Bad_node{Location: location, Desc: ret.Get_errmsg()})
		}
		return nil
	}
	defer rr.Release()

	var buf = rr.Data()
	var h btree_node_header
	if ret, h = decode_btree_header(this.log, buf); ret != nil {
		if visitor != nil {
			visitor.Visit_structural_error(cache_md_lib.Structural_error{Location: location, Desc: ret.Get_errmsg()})
		}
		return nil
	}

	var prev_key uint64
	var have_prev bool
	for i := uint32(0); i < h.Nr_entries; i++ {
		var key = read_btree_key(buf, i)

		if have_prev && key <= prev_key {
			if visitor != nil {
				visitor.Visit_structural_error(cache_md_lib.Structural_error{Location: location, Desc: "keys out of order or duplicated"})
			}
			return nil
		}
		have_prev = true
		prev_key = key

		if key < low || key > high {
			if visitor != nil {
				visitor.Visit_unexpected_key(cache_md_lib.Unexpected_key{Location: location, Key: key})
			}
			continue
		}

		if h.is_internal() {
			var child = read_btree_child(buf, h, i)
			if child >= this.tm.bm.Get_nr_blocks() {
				if visitor != nil {
					visitor.Visit_bad_child(cache_md_lib.Bad_child{Location: location, Child: child, Nr_blocks: this.tm.bm.Get_nr_blocks()})
				}
				continue
			}
			var child_high = high
			if i+1 < h.Nr_entries {
				child_high = read_btree_key(buf, i+1) - 1
			}
			if ret := this.walk_node(child, key, child_high, visitor, fn); ret != nil {
				return ret
			}
		} else {
			var off = btree_value_offset(h.Max_entries, h.Value_size, i)
			var val = buf[off : off+int(h.Value_size)]
			fn(key, val)
		}
	}

	return nil
}
