//go:build linux

package storage

import (
	"io/fs"
	"syscall"
	"time"
)

// creationTime extracts the closest thing to a creation timestamp the
// platform offers. Linux exposes the inode change time; platforms without
// it fall back to the modification time.
func creationTime(info fs.FileInfo) time.Time {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return time.Unix(st.Ctim.Sec, st.Ctim.Nsec)
	}
	return info.ModTime()
}
