package report

import (
	"fmt"
	"os"
)

// DefaultKmsgPath is the kernel message buffer device.
const DefaultKmsgPath = "/dev/kmsg"

// Kmsg writes each note to the kernel message buffer with a single write so
// the kernel records it as one line. The device is opened per note.
type Kmsg struct {
	Path string
}

// Write implements io.Writer.
func (k Kmsg) Write(p []byte) (int, error) {
	path := k.Path
	if path == "" {
		path = DefaultKmsgPath
	}
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	n, err := f.Write(p)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return n, err
}
