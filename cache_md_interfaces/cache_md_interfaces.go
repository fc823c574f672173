// SPDX-License-Identifier: LGPL-2.1
// Copyright (C) 2021-2022 stu mark

// Package cache_md_lib holds the surfaces that external collaborators (the
// cache_check driver, the xml importer/exporter) are meant to depend on:
// the damage visitor interfaces, the block validator interface, and the
// options/error-state types that flow across the open_metadata/check_metadata
// boundary. Apart from the error-state join and the default options,
// nothing in here has an implementation, the src package does that.
package cache_md_lib

import "github.com/nixomose/nixomosegotools/tools"

// Block_size is the one and only block size the whole engine understands.
// every on disk structure is a whole number of these.
const Block_size uint32 = 4096

// Block_kind distinguishes the superblock (special commit ordering) from
// every other block in the cache.
type Block_kind int

const (
	Block_kind_normal Block_kind = iota
	Block_kind_superblock
)

// Open_mode controls whether a block manager may issue writes.
type Open_mode int

const (
	Open_read_only Open_mode = iota
	Open_read_write
)

// Validator is the pre-write/post-read hook a block manager runs on every
// block it loads or writes back. the no-op validator (in cache_md_src) is
// an identity on both sides and is used for blocks whose structure is
// checked some other way.
type Validator interface {
	// Check runs after a block is read from storage. a non-nil Ret means
	// the load itself failed, no lock is granted.
	Check(buf []byte, location uint64) tools.Ret

	// Prepare runs immediately before a block is written.
	Prepare(buf []byte, location uint64)
}
