// Package clipboard adapts the system clipboard. On Wayland it shells out to
// wl-copy/wl-paste, which also exposes the PRIMARY selection; everywhere else it
// falls back to the cross-platform clipboard library, which has no notion of a
// primary selection.
package clipboard

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	atotto "github.com/atotto/clipboard"
)

const troubleshoot = `Troubleshooting:
  - Is wl-clipboard installed? (which wl-paste)
  - Are you in a Wayland session? (echo $WAYLAND_DISPLAY)
  - Is your compositor running?`

var (
	wlOnce      sync.Once
	wlAvailable bool
)

func haveWlClipboard() bool {
	wlOnce.Do(func() {
		_, err := exec.LookPath("wl-copy")
		wlAvailable = err == nil
	})
	return wlAvailable
}

// Copy places content on the system clipboard.
func Copy(content string) error {
	if !haveWlClipboard() {
		if err := atotto.WriteAll(content); err != nil {
			return fmt.Errorf("copy to clipboard: %w", err)
		}
		return nil
	}

	cmd := exec.Command("wl-copy")
	cmd.Stdin = strings.NewReader(content)
	// wl-copy forks into the background to serve the selection; piping its
	// stderr would block us waiting on the fork's end of the pipe.
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("wl-copy: %w\n%s", err, troubleshoot)
	}
	return nil
}

// Paste returns the current clipboard content. An empty clipboard yields an
// empty string, not an error.
func Paste() (string, error) {
	return pasteSelection(false)
}

// PastePrimary returns the PRIMARY selection (mouse selection on Wayland/X11).
// Returns empty on platforms without a primary selection.
func PastePrimary() (string, error) {
	return pasteSelection(true)
}

func pasteSelection(primary bool) (string, error) {
	if !haveWlClipboard() {
		if primary {
			return "", nil
		}
		content, err := atotto.ReadAll()
		if err != nil {
			return "", fmt.Errorf("read clipboard: %w", err)
		}
		return content, nil
	}

	args := []string{"--no-newline"}
	if primary {
		args = append(args, "--primary")
	}

	cmd := exec.Command("wl-paste", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		// An empty selection is routine, not a failure.
		if strings.Contains(stderr.String(), "No selection") {
			return "", nil
		}
		return "", fmt.Errorf("wl-paste: %v: %s\n%s", err, strings.TrimSpace(stderr.String()), troubleshoot)
	}

	return stdout.String(), nil
}
