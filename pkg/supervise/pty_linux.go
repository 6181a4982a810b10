package supervise

import (
	"fmt"
	"os"
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// openPTY allocates a master/slave pair through /dev/ptmx and returns both
// ends opened.
func openPTY() (master *os.File, slave *os.File, err error) {
	master, err = os.OpenFile("/dev/ptmx", os.O_RDWR|syscall.O_NOCTTY|syscall.O_CLOEXEC, 0)
	if err != nil {
		return nil, nil, errors.Wrap(err, "open /dev/ptmx")
	}
	fd := int(master.Fd())

	n, err := unix.IoctlGetInt(fd, unix.TIOCGPTN)
	if err != nil {
		_ = master.Close()
		return nil, nil, errors.Wrap(err, "get pty number")
	}
	if err := unix.IoctlSetPointerInt(fd, unix.TIOCSPTLCK, 0); err != nil {
		_ = master.Close()
		return nil, nil, errors.Wrap(err, "unlock pty slave")
	}

	slavePath := fmt.Sprintf("/dev/pts/%d", n)
	slave, err = os.OpenFile(slavePath, os.O_RDWR|syscall.O_NOCTTY, 0)
	if err != nil {
		_ = master.Close()
		return nil, nil, errors.Wrapf(err, "open pty slave %s", slavePath)
	}
	return master, slave, nil
}

// isPTYClosed reports the error a master read returns once every slave fd
// is gone.
func isPTYClosed(err error) bool {
	return errors.Is(err, syscall.EIO)
}
