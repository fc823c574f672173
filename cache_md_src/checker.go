// SPDX-License-Identifier: LGPL-2.1
// Copyright (C) 2021-2022 stu mark

package cache_md_src

import (
	"bytes"
	"os"
	"strings"

	cache_md_lib "github.com/nixomose/cache_check/cache_md_interfaces"
	"github.com/nixomose/nixomosegotools/tools"
)

/* the top level orchestrator. this is the Go shape of cache_check.cc's
metadata_check/check pair, split the same way the spec asks for it to be
split so a caller outside this module (the cli driver, the xml
exporter) only ever needs two calls: Open_metadata to get a block
manager, Check_metadata to drive it against a set of visitors. Run_check
below is the convenience wrapper that does everything the cli driver
actually wants, in the order the spec resolves: stat and size
classification happen before any block manager gets constructed at all,
unlike the original tool's inconsistent ordering. */

const xml_prolog = "<?xml"

// Open_metadata stats path, rejects anything that isn't a regular file
// or a block device, and opens a block manager over it in the requested
// mode.
func Open_metadata(l *tools.Nixomosetools_logger, path string, mode cache_md_lib.Open_mode) (tools.Ret, *Block_manager) {
	var info os.FileInfo
	var err error
	if info, err = os.Stat(path); err != nil {
		return tools.Error(l, "unable to stat metadata path: ", path, " err: ", err), nil
	}

	var is_block_device = (info.Mode() & os.ModeDevice) != 0 && (info.Mode()&os.ModeCharDevice) == 0
	if !info.Mode().IsRegular() && !is_block_device {
		return tools.Error(l, "metadata path is neither a regular file nor a block device: ", path), nil
	}

	var ret, io = Open_block_io(l, path, mode == cache_md_lib.Open_read_write)
	if ret != nil {
		return ret, nil
	}

	return nil, New_block_manager(l, io)
}

// Close_metadata closes the block manager's underlying io. dirty cached
// blocks are not flushed first.
func Close_metadata(bm *Block_manager) tools.Ret {
	return bm.io.Close()
}

// classify_undersized_metadata implements step 2: a file shorter than a
// single block is either something that looks like an xml export (wrong
// tool entirely) or genuinely too small to hold a superblock. either way
// it's FATAL and there is no superblock to open, so this never gets as
// far as Open_metadata.
func classify_undersized_metadata(l *tools.Nixomosetools_logger, path string, visitor cache_md_lib.Superblock_damage_visitor) (tools.Ret, cache_md_lib.Error_state) {
	var f, err = os.Open(path)
	if err != nil {
		return tools.Error(l, "unable to open metadata path: ", path, " err: ", err), cache_md_lib.Fatal
	}
	defer f.Close()

	var head = make([]byte, 16)
	var n int
	n, err = f.Read(head)
	if err != nil && n == 0 {
		if visitor != nil {
			visitor.Visit_superblock_invalid(cache_md_lib.Superblock_invalid{Desc: "metadata too small"})
		}
		return nil, cache_md_lib.Fatal
	}
	head = head[:n]

	var trimmed = bytes.TrimLeft(head, " \t\r\n\xef\xbb\xbf")
	if strings.HasPrefix(string(trimmed), xml_prolog) {
		if visitor != nil {
			visitor.Visit_superblock_invalid(cache_md_lib.Superblock_invalid{Desc: "this looks like an xml export, not binary metadata"})
		}
		return nil, cache_md_lib.Fatal
	}

	if visitor != nil {
		visitor.Visit_superblock_invalid(cache_md_lib.Superblock_invalid{Desc: "metadata too small"})
	}
	return nil, cache_md_lib.Fatal
}

// Check_metadata walks whichever sub structures options selects, driving
// visitors with every piece of damage found, and returns the combined
// error state. bm must already be open; the superblock is read as part
// of this call.
func Check_metadata(l *tools.Nixomosetools_logger, bm *Block_manager, opts cache_md_lib.Check_options, visitors cache_md_lib.Visitors) (tools.Ret, cache_md_lib.Error_state) {
	var ds damage_state
	var sb_visitor = tracked_superblock_visitor{inner: visitors.Superblock, ds: &ds}
	var mapping_visitor = tracked_mapping_visitor{inner: visitors.Mapping_array, ds: &ds}
	var hint_visitor = tracked_hint_visitor{inner: visitors.Hint_array, ds: &ds}
	var discard_visitor = tracked_bitset_visitor{inner: visitors.Discard_bits, ds: &ds}
	var dirty_visitor = tracked_bitset_visitor{inner: visitors.Dirty_bits, ds: &ds}
	var btree_visitor = tracked_btree_visitor{inner: visitors.Btree, ds: &ds}

	var ret, sb = Read_superblock(l, bm)
	if ret != nil {
		sb_visitor.Visit_superblock_corrupt(cache_md_lib.Superblock_corrupt{Desc: ret.Get_errmsg()})
		return nil, ds.state
	}

	var sm = New_core_space_map(l, bm.Get_nr_blocks())
	var tm = New_transaction_manager(l, bm, sm)

	var needs_check = sb.Needs_check()

	if opts.Check_mappings {
		var ma = New_mapping_array(l, tm, sb.Mapping_root, sb.Cache_block_count, opts.Nr_origin_blocks)
		if ret = ma.Check(btree_visitor, mapping_visitor); ret != nil {
			return ret, ds.state
		}

		if sb.Version >= Superblock_version_2 && sb.Dirty_root != 0 {
			var dirty = New_bitset(l, tm, sb.Dirty_root, sb.Cache_block_count)
			if ret = dirty.Check(btree_visitor, dirty_visitor); ret != nil {
				return ret, ds.state
			}
		}
	}

	if opts.Check_hints && sb.Has_hint_root() {
		var ha = New_hint_array(l, tm, sb.Hint_root, sb.Cache_block_count)
		if ret = ha.Check(btree_visitor, hint_visitor); ret != nil {
			return ret, ds.state
		}
	}

	if opts.Check_discards && sb.Has_discard_root() {
		var discard = New_bitset(l, tm, sb.Discard_root, uint32(sb.Discard_block_count))
		if ret = discard.Check(btree_visitor, discard_visitor); ret != nil {
			return ret, ds.state
		}
	}

	if ds.state.Succeeds(opts.Skip_nonfatal) && opts.Clear_needs_check_on_success && needs_check {
		if ret = clear_needs_check(l, bm.io, sb); ret != nil {
			return ret, ds.state
		}
	}

	return nil, ds.state
}

// clear_needs_check re-opens the metadata read-write, clears the flag and
// commits it through the ordinary superblock protocol - a fresh block
// manager because the read only one Check_metadata was handed can't issue
// writes.
func clear_needs_check(l *tools.Nixomosetools_logger, io *Block_io, sb Superblock) tools.Ret {
	var rw_ret, rw_io = Open_block_io(l, io.path, true)
	if rw_ret != nil {
		return rw_ret
	}
	defer rw_io.Close()

	var bm = New_block_manager(l, rw_io)
	sb.Flags &^= Superblock_flag_needs_check
	return Write_superblock(l, bm, sb)
}

// Run_check is the convenience entry point a cli driver actually calls:
// it performs the stat and size classification the spec requires happen
// before any block manager is constructed, then opens and checks the
// metadata.
func Run_check(l *tools.Nixomosetools_logger, path string, opts cache_md_lib.Check_options, visitors cache_md_lib.Visitors) (tools.Ret, cache_md_lib.Error_state) {
	var info, err = os.Stat(path)
	if err != nil {
		return tools.Error(l, "unable to stat metadata path: ", path, " err: ", err), cache_md_lib.Fatal
	}

	var is_block_device = (info.Mode() & os.ModeDevice) != 0 && (info.Mode()&os.ModeCharDevice) == 0
	if !info.Mode().IsRegular() && !is_block_device {
		return tools.Error(l, "metadata path is neither a regular file nor a block device: ", path), cache_md_lib.Fatal
	}

	if !is_block_device && info.Size() < int64(cache_md_lib.Block_size) {
		return classify_undersized_metadata(l, path, visitors.Superblock)
	}

	var ret, bm = Open_metadata(l, path, cache_md_lib.Open_read_only)
	if ret != nil {
		return ret, cache_md_lib.Fatal
	}
	defer Close_metadata(bm)

	return Check_metadata(l, bm, opts, visitors)
}
