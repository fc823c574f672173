// SPDX-License-Identifier: LGPL-2.1
// Copyright (C) 2021-2022 stu mark

package cache_md_src

import (
	cache_md_entry "github.com/nixomose/cache_check/cache_md_entry"
	cache_md_lib "github.com/nixomose/cache_check/cache_md_interfaces"
	"github.com/nixomose/nixomosegotools/tools"
)

/* mapping array, hint array and both bitsets are all the same underlying
structure: a btree keyed 0..nr_entries-1 whose leaves hold fixed width
values, dense-packed. what differs between them is only what the value
means and what damage is worth reporting about it, so all three share
Check's index-coverage logic and only the per-entry validation differs -
this mirrors the way slookup_i_src.go layers one generic backing store
under several record shaped views of it. */

// seen_index_set is a dense presence bitmap over [0, n). the Open Question
// on sparse vs dense tracking is resolved dense: cache_blocks counts in
// the tens of millions at the high end, not billions, so a []bool is
// cheap and the lookup is a plain array index instead of a map probe.
type seen_index_set struct {
	seen []bool
}

func new_seen_index_set(n uint32) *seen_index_set {
	var s seen_index_set
	s.seen = make([]bool, n)
	return &s
}

func (this *seen_index_set) mark(i uint32) {
	if i < uint32(len(this.seen)) {
		this.seen[i] = true
	}
}

func (this *seen_index_set) missing() []uint32 {
	var out []uint32
	for i, v := range this.seen {
		if !v {
			out = append(out, uint32(i))
		}
	}
	return out
}

/* mapping array */

type MappingArray struct {
	log          *tools.Nixomosetools_logger
	tree         *BTree
	cache_blocks uint32
	nr_origin    uint64
}

func New_mapping_array(l *tools.Nixomosetools_logger, tm *Transaction_manager, root uint64, cache_blocks uint32, nr_origin_blocks uint64) *MappingArray {
	var a MappingArray
	a.log = l
	a.tree = New_btree(l, tm, root, Mapping_array_magic)
	a.cache_blocks = cache_blocks
	a.nr_origin = nr_origin_blocks
	return &a
}

// Check walks the mapping array once, reporting every cache block index
// with no entry, every entry whose valid flag is clear, and every entry
// whose origin_block is out of range for the origin device, mirroring
// cache_check.cc's mapping_array visitor.
func (this *MappingArray) Check(btree_visitor cache_md_lib.Btree_damage_visitor, visitor cache_md_lib.Mapping_array_damage_visitor) tools.Ret {
	var seen = new_seen_index_set(this.cache_blocks)

	var ret = this.tree.Walk(btree_visitor, func(key uint64, value []byte) {
		if key >= uint64(this.cache_blocks) {
			return
		}
		seen.mark(uint32(key))

		var mv cache_md_entry.Mapping_value
		if ret := mv.Deserialize(this.log, value); ret != nil {
			if visitor != nil {
				visitor.Visit_invalid_mapping(cache_md_lib.Invalid_mapping{Cblock: uint32(key), Desc: ret.Get_errmsg()})
			}
			return
		}

		if !mv.Is_valid() {
			if visitor != nil {
				visitor.Visit_invalid_mapping(cache_md_lib.Invalid_mapping{
					Cblock:       uint32(key),
					Origin_block: mv.Origin_block,
					Flags:        mv.Flags,
					Desc:         "valid flag not set",
				})
			}
			return
		}

		if mv.Is_valid() && this.nr_origin > 0 && mv.Origin_block >= this.nr_origin {
			if visitor != nil {
				visitor.Visit_invalid_mapping(cache_md_lib.Invalid_mapping{
					Cblock:       uint32(key),
					Origin_block: mv.Origin_block,
					Flags:        mv.Flags,
					Desc:         "origin block out of range for the origin device",
				})
			}
		}
	})
	if ret != nil {
		return ret
	}

	if missing := seen.missing(); len(missing) > 0 && visitor != nil {
		visitor.Visit_missing_mappings(cache_md_lib.Missing_mappings{Keys: missing})
	}
	return nil
}

/* hint array. entries are an opaque fixed width blob, per the resolved
Open Question their contents are never validated against the policy
name, only their presence is checked. */

type HintArray struct {
	log          *tools.Nixomosetools_logger
	tree         *BTree
	cache_blocks uint32
}

func New_hint_array(l *tools.Nixomosetools_logger, tm *Transaction_manager, root uint64, cache_blocks uint32) *HintArray {
	var a HintArray
	a.log = l
	a.tree = New_btree(l, tm, root, Hint_array_magic)
	a.cache_blocks = cache_blocks
	return &a
}

func (this *HintArray) Check(btree_visitor cache_md_lib.Btree_damage_visitor, visitor cache_md_lib.Hint_array_damage_visitor) tools.Ret {
	var seen = new_seen_index_set(this.cache_blocks)

	var ret = this.tree.Walk(btree_visitor, func(key uint64, value []byte) {
		if key >= uint64(this.cache_blocks) {
			return
		}
		seen.mark(uint32(key))
	})
	if ret != nil {
		return ret
	}

	if missing := seen.missing(); len(missing) > 0 && visitor != nil {
		visitor.Visit_missing_hints(cache_md_lib.Missing_hints{Keys: missing})
	}
	return nil
}

/* bitset. discard and dirty are both a single bit per index, packed 8 to
a byte inside the leaf value the same way the mapping array packs a
struct - this is the bitset structural checker the original tool's FIXME
left undone, resolved as an Open Question in favor of building it. */

type Bitset struct {
	log        *tools.Nixomosetools_logger
	tree       *BTree
	nr_entries uint32
}

func New_bitset(l *tools.Nixomosetools_logger, tm *Transaction_manager, root uint64, nr_entries uint32) *Bitset {
	var b Bitset
	b.log = l
	b.tree = New_btree(l, tm, root, Bitset_magic)
	b.nr_entries = nr_entries
	return &b
}

// each leaf value packs 64 bits, the same way the c++ tool's
// persistent_data bitset stores 64 bits per btree value, so a value's key
// is the word index (bit index / 64) and the value itself is the 8 byte
// word of 64 bits. missing words are reported by word index.
func (this *Bitset) Check(btree_visitor cache_md_lib.Btree_damage_visitor, visitor cache_md_lib.Bitset_damage_visitor) tools.Ret {
	var seen = new_seen_index_set((this.nr_entries + 63) / 64)

	var ret = this.tree.Walk(btree_visitor, func(key uint64, value []byte) {
		if key >= uint64(len(seen.seen)) {
			return
		}
		seen.mark(uint32(key))
	})
	if ret != nil {
		return ret
	}

	if missing := seen.missing(); len(missing) > 0 && visitor != nil {
		visitor.Visit_missing_bits(cache_md_lib.Missing_bits{Keys: missing})
	}
	return nil
}

// Get returns the value of bit index i by locating its word in the
// bitset's btree and testing it directly, for callers that need the
// actual bit rather than a coverage report. Check_metadata does not
// call it.
func (this *Bitset) Get(i uint64) (tools.Ret, bool) {
	var word = i / 64
	var bit = i % 64
	var found bool
	var val uint64

	var ret = this.tree.Walk(nil, func(key uint64, value []byte) {
		if key == word {
			found = true
			for shift, b := range value {
				val |= uint64(b) << (8 * shift)
			}
		}
	})
	if ret != nil {
		return ret, false
	}
	if !found {
		return nil, false
	}
	return nil, val&(1<<bit) != 0
}
