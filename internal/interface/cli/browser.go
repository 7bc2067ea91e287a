package cli

import (
	"fmt"
	"os/exec"
	"runtime"
)

// openBrowser best-effort launches the operator's default browser at url.
// No example in the corpus wraps this concern with a third-party package,
// so it stays on os/exec + runtime.GOOS, matching how the teacher's own
// subprocess helpers dispatch platform-specific commands.
func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("open browser: %w", err)
	}
	return nil
}
