//go:build darwin

package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

const (
	darwinBinaryPath = "/usr/local/bin/sharer"
	darwinPlistDst   = "/Library/LaunchDaemons/com.sharer.broadcaster.plist"
	darwinLogDir     = "/Library/Logs/Sharer"
	darwinConfigDir  = "/Library/Application Support/Sharer"
	darwinLabel      = "com.sharer.broadcaster"
)

// Embedded launchd plist.
const darwinPlist = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>com.sharer.broadcaster</string>

    <key>ProgramArguments</key>
    <array>
        <string>/usr/local/bin/sharer</string>
        <string>run</string>
    </array>

    <key>RunAtLoad</key>
    <true/>

    <key>KeepAlive</key>
    <dict>
        <key>SuccessfulExit</key>
        <false/>
    </dict>

    <key>ThrottleInterval</key>
    <integer>5</integer>

    <key>WorkingDirectory</key>
    <string>/Library/Application Support/Sharer</string>

    <key>StandardOutPath</key>
    <string>/Library/Logs/Sharer/broadcaster.log</string>

    <key>StandardErrorPath</key>
    <string>/Library/Logs/Sharer/broadcaster.err</string>

    <key>SoftResourceLimits</key>
    <dict>
        <key>NumberOfFiles</key>
        <integer>8192</integer>
    </dict>
</dict>
</plist>
`

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Manage the broadcaster system service (launchd)",
}

func init() {
	rootCmd.AddCommand(serviceCmd)
	serviceCmd.AddCommand(serviceInstallCmd)
	serviceCmd.AddCommand(serviceUninstallCmd)
	serviceCmd.AddCommand(serviceStartCmd)
	serviceCmd.AddCommand(serviceStopCmd)
	serviceCmd.AddCommand(serviceStatusCmd)
}

var serviceInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the broadcaster as a launchd service",
	RunE: func(cmd *cobra.Command, args []string) error {
		if os.Geteuid() != 0 {
			return fmt.Errorf("must run as root (sudo sharer service install)")
		}

		for _, dir := range []string{darwinConfigDir, darwinLogDir} {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create %s: %w", dir, err)
			}
		}
		if err := os.Chmod(darwinConfigDir, 0700); err != nil {
			return fmt.Errorf("failed to set permissions on %s: %w", darwinConfigDir, err)
		}

		exePath, err := os.Executable()
		if err != nil {
			return fmt.Errorf("failed to determine executable path: %w", err)
		}
		exePath, err = filepath.EvalSymlinks(exePath)
		if err != nil {
			return fmt.Errorf("failed to resolve executable path: %w", err)
		}

		if exePath != darwinBinaryPath {
			data, err := os.ReadFile(exePath)
			if err != nil {
				return fmt.Errorf("failed to read binary: %w", err)
			}
			if err := os.WriteFile(darwinBinaryPath, data, 0755); err != nil {
				return fmt.Errorf("failed to copy binary to %s: %w", darwinBinaryPath, err)
			}
			fmt.Printf("Binary installed to %s\n", darwinBinaryPath)
		}

		if err := os.WriteFile(darwinPlistDst, []byte(darwinPlist), 0644); err != nil {
			return fmt.Errorf("failed to write plist: %w", err)
		}
		fmt.Printf("LaunchDaemon plist installed to %s\n", darwinPlistDst)

		fmt.Println()
		fmt.Println("Sharer service installed.")
		fmt.Println()
		fmt.Println("Next steps:")
		fmt.Printf("  1. Configure: edit '%s/broadcaster.yaml' (signaller_url, password)\n", darwinConfigDir)
		fmt.Printf("  2. Start:     sudo sharer service start\n")
		fmt.Printf("  3. Status:    sudo sharer service status\n")
		fmt.Printf("  4. Logs:      tail -f %s/broadcaster.log\n", darwinLogDir)
		return nil
	},
}

var serviceUninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Uninstall the broadcaster launchd service",
	RunE: func(cmd *cobra.Command, args []string) error {
		if os.Geteuid() != 0 {
			return fmt.Errorf("must run as root (sudo sharer service uninstall)")
		}

		if isLaunchdLoaded(darwinLabel) {
			out, err := exec.Command("launchctl", "bootout", "system/"+darwinLabel).CombinedOutput()
			if err != nil {
				out2, err2 := exec.Command("launchctl", "unload", darwinPlistDst).CombinedOutput()
				if err2 != nil {
					fmt.Fprintf(os.Stderr, "Warning: failed to stop service: %s / %s\n",
						strings.TrimSpace(string(out)), strings.TrimSpace(string(out2)))
				}
			} else {
				_ = out
			}
			fmt.Println("Service stopped.")
		}

		os.Remove(darwinPlistDst)
		os.Remove(darwinBinaryPath)

		fmt.Println("Sharer service uninstalled.")
		fmt.Printf("Config at %s was preserved.\n", darwinConfigDir)
		fmt.Printf("To remove config: sudo rm -rf '%s'\n", darwinConfigDir)
		return nil
	},
}

var serviceStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the broadcaster service",
	RunE: func(cmd *cobra.Command, args []string) error {
		if os.Geteuid() != 0 {
			return fmt.Errorf("must run as root (sudo sharer service start)")
		}

		if !fileExists(darwinPlistDst) {
			return fmt.Errorf("service not installed — run 'sudo sharer service install' first")
		}

		if isLaunchdLoaded(darwinLabel) {
			out, err := exec.Command("launchctl", "kickstart", "system/"+darwinLabel).CombinedOutput()
			if err != nil {
				return fmt.Errorf("failed to start service: %s", strings.TrimSpace(string(out)))
			}
		} else {
			out, err := exec.Command("launchctl", "bootstrap", "system", darwinPlistDst).CombinedOutput()
			if err != nil {
				out2, err2 := exec.Command("launchctl", "load", darwinPlistDst).CombinedOutput()
				if err2 != nil {
					return fmt.Errorf("failed to load service: %s / %s",
						strings.TrimSpace(string(out)), strings.TrimSpace(string(out2)))
				}
			}
		}

		fmt.Println("Sharer service started.")
		fmt.Printf("Logs: tail -f %s/broadcaster.log\n", darwinLogDir)
		return nil
	},
}

var serviceStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the broadcaster service",
	RunE: func(cmd *cobra.Command, args []string) error {
		if os.Geteuid() != 0 {
			return fmt.Errorf("must run as root (sudo sharer service stop)")
		}

		if !isLaunchdLoaded(darwinLabel) {
			fmt.Println("Service is not running.")
			return nil
		}

		out, err := exec.Command("launchctl", "bootout", "system/"+darwinLabel).CombinedOutput()
		if err != nil {
			out2, err2 := exec.Command("launchctl", "unload", darwinPlistDst).CombinedOutput()
			if err2 != nil {
				return fmt.Errorf("failed to stop service: %s / %s",
					strings.TrimSpace(string(out)), strings.TrimSpace(string(out2)))
			}
		}

		fmt.Println("Sharer service stopped.")
		return nil
	},
}

var serviceStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show broadcaster service status",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !fileExists(darwinPlistDst) {
			fmt.Println("Service: not installed")
			return nil
		}

		if !isLaunchdLoaded(darwinLabel) {
			fmt.Println("Service: installed but not loaded")
			return nil
		}

		out, err := exec.Command("launchctl", "print", "system/"+darwinLabel).CombinedOutput()
		if err != nil {
			fmt.Println("Service: running")
			return nil
		}

		lines := strings.Split(string(out), "\n")
		for _, line := range lines {
			trimmed := strings.TrimSpace(line)
			if strings.HasPrefix(trimmed, "pid = ") || strings.HasPrefix(trimmed, "state = ") {
				fmt.Println(trimmed)
			}
		}

		fmt.Printf("Logs: %s/broadcaster.log\n", darwinLogDir)
		return nil
	},
}

// isLaunchdLoaded checks if the given label is loaded in launchd.
func isLaunchdLoaded(label string) bool {
	err := exec.Command("launchctl", "print", "system/"+label).Run()
	return err == nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
