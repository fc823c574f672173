// SPDX-License-Identifier: LGPL-2.1
// Copyright (C) 2021-2022 stu mark

package cache_md_lib

/* content damage is not an error, it's data. every walk hands damage to a
visitor instead of aborting, so one pass over the metadata can report every
problem it finds instead of stopping at the first one. this is a straight
port of the original tool's damage_visitor classes: one interface per
family of damage, one method per variant, so dispatch is exhaustive by
construction (nothing outside this package can add a new damage struct and
have it satisfy an existing visitor by accident). */

// Superblock_corrupt means block 0 could not be read or failed its
// validator (checksum mismatch or bad magic).
type Superblock_corrupt struct {
	Desc string
}

// Superblock_invalid means the metadata cannot hold a superblock at all:
// it is shorter than one block, or it looks like an xml export. the
// decoded superblock fields are not sanity checked (roots are not
// compared against the device size).
type Superblock_invalid struct {
	Desc string
}

type Superblock_damage_visitor interface {
	Visit_superblock_corrupt(d Superblock_corrupt)
	Visit_superblock_invalid(d Superblock_invalid)
}

// Missing_mappings reports the cache block indices that have no entry at
// all in the mapping array, when every index in [0, cache_blocks) is
// required to have exactly one.
type Missing_mappings struct {
	Keys []uint32
}

// Invalid_mapping reports one entry whose origin_block or flags are
// impossible given the device geometry.
type Invalid_mapping struct {
	Cblock      uint32
	Origin_block uint64
	Flags       uint32
	Desc        string
}

type Mapping_array_damage_visitor interface {
	Visit_missing_mappings(d Missing_mappings)
	Visit_invalid_mapping(d Invalid_mapping)
}

// Missing_hints reports cache block indices with no hint entry.
type Missing_hints struct {
	Keys []uint32
}

type Hint_array_damage_visitor interface {
	Visit_missing_hints(d Missing_hints)
}

// Missing_bits reports the 64 bit word indices absent from a bitset (dirty
// or discard) that should cover every index in [0, nr_entries); word k
// holds bits [64k, 64k+64).
type Missing_bits struct {
	Keys []uint32
}

type Bitset_damage_visitor interface {
	Visit_missing_bits(d Missing_bits)
}

/* the b-tree traversal damage is one level lower than the array/bitset
damage above: it's what a MappingArray or a Bitset's own walk reports when
the underlying btree itself is structurally broken, as opposed to merely
missing entries. */

type Bad_node struct {
	Location uint64
	Desc     string
}

type Unexpected_key struct {
	Location uint64
	Key      uint64
}

type Bad_child struct {
	Location   uint64
	Child      uint64
	Nr_blocks uint64
}

type Structural_error struct {
	Location uint64
	Desc     string
}

type Btree_damage_visitor interface {
	Visit_bad_node(d Bad_node)
	Visit_unexpected_key(d Unexpected_key)
	Visit_bad_child(d Bad_child)
	Visit_structural_error(d Structural_error)
}
