// SPDX-License-Identifier: LGPL-2.1
// Copyright (C) 2021-2022 stu mark

// package name must match directory name
package cache_md_src

import (
	"os"
	"unsafe"

	"github.com/ncw/directio"
	cache_md_lib "github.com/nixomose/cache_check/cache_md_interfaces"
	"github.com/nixomose/nixomosegotools/tools"
	"golang.org/x/sys/unix"
)

/* this is the bottom of the whole stack, raw aligned reads and writes of
one block at a time against a file or a block device. it is stateless
beyond the open file descriptor, no caching, no ordering, the block
manager above us owns all of that. */

const ioctl_blkgetsize64 = 0x80081272 // linux BLKGETSIZE64

type Block_io struct {
	log       *tools.Nixomosetools_logger
	path      string
	file      *os.File
	nr_blocks uint64
	writeable bool
}

func Open_block_io(l *tools.Nixomosetools_logger, path string, writeable bool) (tools.Ret, *Block_io) {
	/* stat the path first so we know if we're looking at a regular file or
	a block device, and can size the thing accordingly. this is the same
	check cache_check.cc's guarded_stat does before deciding whether the
	path is even something we're willing to open. */

	var info os.FileInfo
	var err error
	if info, err = os.Stat(path); err != nil {
		return tools.Error(l, "unable to stat metadata path: ", path, " err: ", err), nil
	}

	var is_block_device = (info.Mode() & os.ModeDevice) != 0 && (info.Mode()&os.ModeCharDevice) == 0

	var flag int
	if writeable {
		flag = os.O_RDWR
	} else {
		flag = os.O_RDONLY
	}

	var file *os.File
	if file, err = directio.OpenFile(path, flag, 0600); err != nil {
		return tools.Error(l, "unable to open metadata path: ", path, " err: ", err), nil
	}

	var b Block_io
	b.log = l
	b.path = path
	b.file = file
	b.writeable = writeable

	var ret tools.Ret
	if is_block_device {
		if ret, b.nr_blocks = get_block_device_size(l, file); ret != nil {
			file.Close()
			return ret, nil
		}
	} else {
		b.nr_blocks = uint64(info.Size()) / uint64(cache_md_lib.Block_size)
	}

	return nil, &b
}

func get_block_device_size(l *tools.Nixomosetools_logger, file *os.File) (tools.Ret, uint64) {
	/* BLKGETSIZE64 gives us the device size in bytes, straight ioctl, no
	high level wrapper for this one in x/sys/unix. */

	var size uint64
	var _, _, errno = unix.Syscall(unix.SYS_IOCTL, file.Fd(), ioctl_blkgetsize64, uintptr(unsafe.Pointer(&size)))
	if errno != 0 {
		return tools.Error(l, "unable to get block device size for: ", file.Name(), " errno: ", errno), 0
	}
	return nil, size / uint64(cache_md_lib.Block_size)
}

func (this *Block_io) Get_nr_blocks() uint64 {
	return this.nr_blocks
}

func (this *Block_io) Read_block(location uint64, buf []byte) tools.Ret {
	if location >= this.nr_blocks {
		return tools.Error(this.log, "read location ", location, " is out of range, nr_blocks: ", this.nr_blocks)
	}
	if uint32(len(buf)) != cache_md_lib.Block_size {
		return tools.Error(this.log, "read buffer must be exactly one block, got: ", len(buf))
	}

	var n, err = this.file.ReadAt(buf, int64(location)*int64(cache_md_lib.Block_size))
	if err != nil {
		return tools.Error(this.log, "short read at location: ", location, " err: ", err)
	}
	if uint32(n) != cache_md_lib.Block_size {
		return tools.Error(this.log, "short read at location: ", location, " expected: ", cache_md_lib.Block_size, " got: ", n)
	}
	return nil
}

func (this *Block_io) Write_block(location uint64, buf []byte) tools.Ret {
	if !this.writeable {
		return tools.Error(this.log, "attempt to write to a read only block io at location: ", location)
	}
	if location >= this.nr_blocks {
		return tools.Error(this.log, "write location ", location, " is out of range, nr_blocks: ", this.nr_blocks)
	}
	if uint32(len(buf)) != cache_md_lib.Block_size {
		return tools.Error(this.log, "write buffer must be exactly one block, got: ", len(buf))
	}

	var n, err = this.file.WriteAt(buf, int64(location)*int64(cache_md_lib.Block_size))
	if err != nil {
		return tools.Error(this.log, "short write at location: ", location, " err: ", err)
	}
	if uint32(n) != cache_md_lib.Block_size {
		return tools.Error(this.log, "short write at location: ", location, " expected: ", cache_md_lib.Block_size, " got: ", n)
	}
	return nil
}

func (this *Block_io) Close() tools.Ret {
	if err := this.file.Close(); err != nil {
		return tools.Error(this.log, "error closing metadata file: ", err)
	}
	return nil
}

func New_aligned_block() []byte {
	return directio.AlignedBlock(int(cache_md_lib.Block_size))
}
