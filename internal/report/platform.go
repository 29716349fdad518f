//go:build unix

package report

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// CurrentPlatform reads the running kernel's identification.
func CurrentPlatform() (Platform, error) {
	var u unix.Utsname
	if err := unix.Uname(&u); err != nil {
		return Platform{}, fmt.Errorf("uname: %w", err)
	}
	return Platform{
		Release:  unix.ByteSliceToString(u.Release[:]),
		Machine:  unix.ByteSliceToString(u.Machine[:]),
		Hostname: unix.ByteSliceToString(u.Nodename[:]),
	}, nil
}
