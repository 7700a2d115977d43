package output

import (
	"os"

	"golang.org/x/sys/unix"
)

// stdoutSize returns the terminal size of stdout in columns and rows.
func stdoutSize() (int, int, error) {
	ws, err := unix.IoctlGetWinsize(int(os.Stdout.Fd()), unix.TIOCGWINSZ)
	if err != nil {
		return 0, 0, err
	}
	return int(ws.Col), int(ws.Row), nil
}
