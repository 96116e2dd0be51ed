package proc

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// SignalGroup delivers sig to every process in the group. A zero or negative
// pgid is a no-op: the pipeline never had an OS process group, or shares the
// shell's own group which must not be signaled wholesale.
func SignalGroup(pgid int, sig syscall.Signal) error {
	if pgid <= 0 || pgid == syscall.Getpgrp() {
		return nil
	}
	return unix.Kill(-pgid, unix.Signal(sig))
}

// SetForegroundGroup hands the controlling terminal to the given process
// group (tcsetpgrp).
func SetForegroundGroup(ttyFd, pgid int) error {
	return unix.IoctlSetPointerInt(ttyFd, unix.TIOCSPGRP, pgid)
}

// ForegroundGroup reports which process group currently owns the controlling
// terminal (tcgetpgrp).
func ForegroundGroup(ttyFd int) (int, error) {
	return unix.IoctlGetInt(ttyFd, unix.TIOCGPGRP)
}

// IsTerminal reports whether fd refers to a terminal.
func IsTerminal(fd int) bool {
	_, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	return err == nil
}
