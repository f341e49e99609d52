//go:build !linux

package listing

import (
	"io/fs"
	"time"
)

func createdTime(_ string, info fs.FileInfo) time.Time {
	return info.ModTime()
}
