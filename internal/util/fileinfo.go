package util

import (
	"fmt"
	"os"
	"syscall"
)

// FileIdentity carries the stat fields discovery relies on: size and mtime
// for downstream bookkeeping, plus the (device, inode) pair that names one
// physical file. Inode numbers repeat across filesystems, so the device id
// is part of the identity; dedupe on the pair, never the inode alone.
type FileIdentity struct {
	ModTime int64
	Size    int64
	Dev     uint64
	Inode   uint64
}

// FileID is the comparable physical-file key of a FileIdentity.
type FileID struct {
	Dev   uint64
	Inode uint64
}

func (fi *FileIdentity) ID() FileID {
	return FileID{Dev: fi.Dev, Inode: fi.Inode}
}

// StatFile stats a path and returns its identity. Linux and macOS only.
func StatFile(path string) (*FileIdentity, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	sysStat, ok := stat.Sys().(*syscall.Stat_t)
	if !ok {
		return nil, fmt.Errorf("no stat details for %s", path)
	}

	return &FileIdentity{
		ModTime: stat.ModTime().Unix(),
		Size:    stat.Size(),
		Dev:     uint64(sysStat.Dev),
		Inode:   sysStat.Ino,
	}, nil
}
