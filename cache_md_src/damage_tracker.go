// SPDX-License-Identifier: LGPL-2.1
// Copyright (C) 2021-2022 stu mark

package cache_md_src

import cache_md_lib "github.com/nixomose/cache_check/cache_md_interfaces"

/* section 7's "visitors observe and mutate the reporter's accumulated
error state" is implemented here: every visitor Check_metadata hands down
into a sub walk is wrapped so a damage report both reaches the caller's
own visitor (if any) and folds into the running Error_state, before the
walk continues. every family of content damage is FATAL under the
default policy; the taxonomy leaves room for a caller to reclassify some
of it as NON_FATAL but nothing here opts into that yet. */

type damage_state struct {
	state cache_md_lib.Error_state
}

func (this *damage_state) mark(s cache_md_lib.Error_state) {
	this.state = cache_md_lib.Combine_errors(this.state, s)
}

type tracked_superblock_visitor struct {
	inner cache_md_lib.Superblock_damage_visitor
	ds    *damage_state
}

func (this tracked_superblock_visitor) Visit_superblock_corrupt(d cache_md_lib.Superblock_corrupt) {
	this.ds.mark(cache_md_lib.Fatal)
	if this.inner != nil {
		this.inner.Visit_superblock_corrupt(d)
	}
}

func (this tracked_superblock_visitor) Visit_superblock_invalid(d cache_md_lib.Superblock_invalid) {
	this.ds.mark(cache_md_lib.Fatal)
	if this.inner != nil {
		this.inner.Visit_superblock_invalid(d)
	}
}

var _ cache_md_lib.Superblock_damage_visitor = tracked_superblock_visitor{}

type tracked_mapping_visitor struct {
	inner cache_md_lib.Mapping_array_damage_visitor
	ds    *damage_state
}

func (this tracked_mapping_visitor) Visit_missing_mappings(d cache_md_lib.Missing_mappings) {
	this.ds.mark(cache_md_lib.Fatal)
	if this.inner != nil {
		this.inner.Visit_missing_mappings(d)
	}
}

func (this tracked_mapping_visitor) Visit_invalid_mapping(d cache_md_lib.Invalid_mapping) {
	this.ds.mark(cache_md_lib.Fatal)
	if this.inner != nil {
		this.inner.Visit_invalid_mapping(d)
	}
}

var _ cache_md_lib.Mapping_array_damage_visitor = tracked_mapping_visitor{}

type tracked_hint_visitor struct {
	inner cache_md_lib.Hint_array_damage_visitor
	ds    *damage_state
}

func (this tracked_hint_visitor) Visit_missing_hints(d cache_md_lib.Missing_hints) {
	this.ds.mark(cache_md_lib.Fatal)
	if this.inner != nil {
		this.inner.Visit_missing_hints(d)
	}
}

var _ cache_md_lib.Hint_array_damage_visitor = tracked_hint_visitor{}

type tracked_bitset_visitor struct {
	inner cache_md_lib.Bitset_damage_visitor
	ds    *damage_state
}

func (this tracked_bitset_visitor) Visit_missing_bits(d cache_md_lib.Missing_bits) {
	this.ds.mark(cache_md_lib.Fatal)
	if this.inner != nil {
		this.inner.Visit_missing_bits(d)
	}
}

var _ cache_md_lib.Bitset_damage_visitor = tracked_bitset_visitor{}

type tracked_btree_visitor struct {
	inner cache_md_lib.Btree_damage_visitor
	ds    *damage_state
}

func (this tracked_btree_visitor) Visit_bad_node(d cache_md_lib.Bad_node) {
	this.ds.mark(cache_md_lib.Fatal)
	if this.inner != nil {
		this.inner.Visit_bad_node(d)
	}
}

func (this tracked_btree_visitor) Visit_unexpected_key(d cache_md_lib.Unexpected_key) {
	this.ds.mark(cache_md_lib.Fatal)
	if this.inner != nil {
		this.inner.Visit_unexpected_key(d)
	}
}

func (this tracked_btree_visitor) Visit_bad_child(d cache_md_lib.Bad_child) {
	this.ds.mark(cache_md_lib.Fatal)
	if this.inner != nil {
		this.inner.Visit_bad_child(d)
	}
}

func (this tracked_btree_visitor) Visit_structural_error(d cache_md_lib.Structural_error) {
	this.ds.mark(cache_md_lib.Fatal)
	if this.inner != nil {
		this.inner.Visit_structural_error(d)
	}
}

var _ cache_md_lib.Btree_damage_visitor = tracked_btree_visitor{}
