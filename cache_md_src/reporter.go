// SPDX-License-Identifier: LGPL-2.1
// Copyright (C) 2021-2022 stu mark

package cache_md_src

import (
	"fmt"
	"io"

	cache_md_lib "github.com/nixomose/cache_check/cache_md_interfaces"
)

/* text_reporter is the human readable form of every damage visitor, the Go
shape of cache_check.cc's textual damage_visitor implementations. it writes
one line per problem to the given writer and stays completely silent when
quiet is set, matching the cli's -q/--quiet flag. */

type text_reporter struct {
	w     io.Writer
	quiet bool
}

func new_text_reporter(w io.Writer, quiet bool) *text_reporter {
	return &text_reporter{w: w, quiet: quiet}
}

func (this *text_reporter) printf(format string, args ...interface{}) {
	if this.quiet {
		return
	}
	fmt.Fprintf(this.w, format, args...)
}

func (this *text_reporter) Visit_superblock_corrupt(d cache_md_lib.Superblock_corrupt) {
	this.printf("superblock is corrupt: %s\n", d.Desc)
}

func (this *text_reporter) Visit_superblock_invalid(d cache_md_lib.Superblock_invalid) {
	this.printf("superblock is invalid: %s\n", d.Desc)
}

func (this *text_reporter) Visit_missing_mappings(d cache_md_lib.Missing_mappings) {
	this.printf("missing %d mapping(s), first few indices: %v\n", len(d.Keys), first_few(d.Keys, 8))
}

func (this *text_reporter) Visit_invalid_mapping(d cache_md_lib.Invalid_mapping) {
	this.printf("invalid mapping at cblock %d: origin_block=%d flags=%d: %s\n", d.Cblock, d.Origin_block, d.Flags, d.Desc)
}

func (this *text_reporter) Visit_missing_hints(d cache_md_lib.Missing_hints) {
	this.printf("missing %d hint(s), first few indices: %v\n", len(d.Keys), first_few(d.Keys, 8))
}

func (this *text_reporter) Visit_missing_bits(d cache_md_lib.Missing_bits) {
	this.printf("missing %d bitset word(s), first few word indices: %v\n", len(d.Keys), first_few(d.Keys, 8))
}

func (this *text_reporter) Visit_bad_node(d cache_md_lib.Bad_node) {
	this.printf("bad node at block %d: %s\n", d.Location, d.Desc)
}

func (this *text_reporter) Visit_unexpected_key(d cache_md_lib.Unexpected_key) {
	this.printf("unexpected key %d in node at block %d\n", d.Key, d.Location)
}

func (this *text_reporter) Visit_bad_child(d cache_md_lib.Bad_child) {
	this.printf("bad child pointer %d in node at block %d (device has %d blocks)\n", d.Child, d.Location, d.Nr_blocks)
}

func (this *text_reporter) Visit_structural_error(d cache_md_lib.Structural_error) {
	this.printf("structural error in node at block %d: %s\n", d.Location, d.Desc)
}

func first_few(keys []uint32, n int) []uint32 {
	if len(keys) <= n {
		return keys
	}
	return keys[:n]
}

// New_text_visitors bundles a single text_reporter into every visitor slot
// of cache_md_lib.Visitors, so a cli driver gets full textual reporting
// with one call.
func New_text_visitors(w io.Writer, quiet bool) cache_md_lib.Visitors {
	var r = new_text_reporter(w, quiet)
	return cache_md_lib.Visitors{
		Superblock:    r,
		Mapping_array: r,
		Hint_array:    r,
		Discard_bits:  r,
		Dirty_bits:    r,
		Btree:         r,
	}
}
