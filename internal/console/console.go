// Package console implements the operator command prompt that runs next to
// the server. It never touches server state itself: the only effect it can
// have is to ask for shutdown by returning ErrClose.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrClose is returned by Run when the operator issues the close command.
var ErrClose = errors.New("console: close requested")

// Status is the read-only view of the server the console can report on.
type Status interface {
	Online() int
}

const help = `commands:
  close   notify all users and stop the server
  users   show how many users are online
  help    show this message`

// Run reads commands from in until close is entered, in reaches EOF, or ctx
// is done. EOF and cancellation return nil; close returns ErrClose.
func Run(ctx context.Context, in io.Reader, out io.Writer, status Status) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	prompt(out)
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			return err
		case line := <-lines:
			switch cmd := strings.TrimSpace(line); cmd {
			case "":
			case "close":
				fmt.Fprintln(out, "Closing server")
				return ErrClose
			case "users":
				fmt.Fprintf(out, "%d users online\n", status.Online())
			case "help", "?":
				fmt.Fprintln(out, help)
			default:
				fmt.Fprintf(out, "unknown command %q (try help)\n", cmd)
			}
			prompt(out)
		}
	}
}

func prompt(out io.Writer) {
	fmt.Fprint(out, "> ")
}
