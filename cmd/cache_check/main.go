// SPDX-License-Identifier: LGPL-2.1
// Copyright (C) 2021-2022 stu mark

// cache_check validates the on disk metadata of a dm-cache device. it is the
// cli surface spec.md section 6 asks for, specified only for compatibility
// with the original tool's invocation: one positional path argument, a
// handful of skip flags, and an exit code of 0 or 1.
package main

import (
	"flag"
	"fmt"
	"os"

	cache_md_lib "github.com/nixomose/cache_check/cache_md_interfaces"
	"github.com/nixomose/cache_check/cache_md_src"
	"github.com/nixomose/nixomosegotools/tools"
)

const version_string = "cache_check (nixomose cache_check) 1.0"

func main() {
	var quiet = flag.Bool("q", false, "suppress non-error messages")
	flag.BoolVar(quiet, "quiet", false, "suppress non-error messages")
	var show_version = flag.Bool("V", false, "print the version and exit")
	flag.BoolVar(show_version, "version", false, "print the version and exit")
	var super_block_only = flag.Bool("super-block-only", false, "only check the superblock")
	var skip_mappings = flag.Bool("skip-mappings", false, "don't check the mapping array")
	var skip_hints = flag.Bool("skip-hints", false, "don't check the hint array")
	var skip_discards = flag.Bool("skip-discards", false, "don't check the discard bitset")
	var clear_needs_check = flag.Bool("clear-needs-check-flag", false, "clear the needs_check flag on success")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [options] <metadata device or file>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *show_version {
		fmt.Println(version_string)
		os.Exit(0)
	}

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}

	var path = flag.Arg(0)
	var log = tools.New_Nixomosetools_logger(tools.DEBUG)
	if *quiet {
		log.Set_level(tools.INFO)
	}

	var opts = cache_md_lib.Default_check_options()
	if *super_block_only {
		opts.Check_mappings = false
		opts.Check_hints = false
		opts.Check_discards = false
	} else {
		opts.Check_mappings = !*skip_mappings
		opts.Check_hints = !*skip_hints
		opts.Check_discards = !*skip_discards
	}
	opts.Quiet = *quiet
	opts.Clear_needs_check_on_success = *clear_needs_check

	var visitors = cache_md_src.New_text_visitors(os.Stderr, *quiet)

	var ret, state = cache_md_src.Run_check(log, path, opts, visitors)
	if ret != nil {
		if !*quiet {
			fmt.Fprintln(os.Stderr, ret.Get_errmsg())
		}
		os.Exit(1)
	}

	if !state.Succeeds(opts.Skip_nonfatal) {
		os.Exit(1)
	}
	os.Exit(0)
}
