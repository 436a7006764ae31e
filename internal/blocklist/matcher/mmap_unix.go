//go:build unix

package matcher

import (
	"os"

	"golang.org/x/sys/unix"
)

// mmapFile memory-maps path read-only via mmap(2), returning the mapped
// bytes and a closer that unmaps them. This is the spec's "memory-mapped
// read-only at process start" loading strategy (§3, §4.D).
func mmapFile(path string) ([]byte, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, nil, err
	}
	if stat.Size() == 0 {
		return nil, nil, os.ErrInvalid
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(stat.Size()), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, nil, err
	}

	return data, func() error { return unix.Munmap(data) }, nil
}
