//go:build !linux

package storage

import (
	"io/fs"
	"time"
)

func creationTime(info fs.FileInfo) time.Time {
	return info.ModTime()
}
