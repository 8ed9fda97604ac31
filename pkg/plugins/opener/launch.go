package opener

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
)

// runner starts a platform launcher command. Swapped out in tests.
type runner func(ctx context.Context, name string, args ...string) error

// execRunner starts the launcher detached from the app's stdio and reaps
// it in the background; launchers like xdg-open exit on their own.
func execRunner(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", name, err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

func urlArgv(goos, target string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", []string{target}
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", target}
	default:
		return "xdg-open", []string{target}
	}
}

func pathArgv(goos, target string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", []string{target}
	case "windows":
		return "explorer", []string{target}
	default:
		return "xdg-open", []string{target}
	}
}

func revealArgv(goos, target string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", []string{"-R", target}
	case "windows":
		return "explorer", []string{"/select,", target}
	default:
		// Linux file managers have no portable select flag; open the
		// containing directory instead.
		return "xdg-open", []string{filepath.Dir(target)}
	}
}
