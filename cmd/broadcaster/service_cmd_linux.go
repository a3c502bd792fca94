//go:build linux

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
	linuxBinaryPath  = "/usr/local/bin/sharer"
	linuxUnitDst     = "/etc/systemd/system/sharer.service"
	linuxConfigDir   = "/etc/sharer"
	linuxDataDir     = "/var/lib/sharer"
	linuxLogDir      = "/var/log/sharer"
	linuxServiceName = "sharer"
)

// Embedded systemd unit.
const linuxUnit = `[Unit]
Description=Sharer Screen Broadcaster
After=network-online.target
Wants=network-online.target

[Service]
Type=simple
ExecStart=/usr/local/bin/sharer run
WorkingDirectory=/etc/sharer
Restart=on-failure
RestartSec=5
StartLimitIntervalSec=60
StartLimitBurst=5

# Security hardening
ProtectSystem=strict
ProtectHome=read-only
ReadWritePaths=/etc/sharer /var/lib/sharer /var/log/sharer
PrivateTmp=true
NoNewPrivileges=false

# Logging (stdout goes to journald)
StandardOutput=journal
StandardError=journal
SyslogIdentifier=sharer

# File limits
LimitNOFILE=8192

[Install]
WantedBy=multi-user.target
`

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Manage the broadcaster system service (systemd)",
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
	Short: "Install the broadcaster as a systemd service",
	RunE: func(cmd *cobra.Command, args []string) error {
		if os.Geteuid() != 0 {
			return fmt.Errorf("must run as root (sudo sharer service install)")
		}

		for _, dir := range []string{linuxConfigDir, linuxDataDir, linuxLogDir} {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create %s: %w", dir, err)
			}
		}
		if err := os.Chmod(linuxConfigDir, 0700); err != nil {
			return fmt.Errorf("failed to set permissions on %s: %w", linuxConfigDir, err)
		}

		exePath, err := os.Executable()
		if err != nil {
			return fmt.Errorf("failed to determine executable path: %w", err)
		}
		exePath, err = filepath.EvalSymlinks(exePath)
		if err != nil {
			return fmt.Errorf("failed to resolve executable path: %w", err)
		}

		if exePath != linuxBinaryPath {
			data, err := os.ReadFile(exePath)
			if err != nil {
				return fmt.Errorf("failed to read binary: %w", err)
			}
			if err := os.WriteFile(linuxBinaryPath, data, 0755); err != nil {
				return fmt.Errorf("failed to copy binary to %s: %w", linuxBinaryPath, err)
			}
			fmt.Printf("Binary installed to %s\n", linuxBinaryPath)
		}

		if err := os.WriteFile(linuxUnitDst, []byte(linuxUnit), 0644); err != nil {
			return fmt.Errorf("failed to write unit file: %w", err)
		}
		fmt.Printf("Systemd unit installed to %s\n", linuxUnitDst)

		if out, err := exec.Command("systemctl", "daemon-reload").CombinedOutput(); err != nil {
			return fmt.Errorf("failed to reload systemd: %s", strings.TrimSpace(string(out)))
		}

		if out, err := exec.Command("systemctl", "enable", linuxServiceName).CombinedOutput(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to enable service: %s\n", strings.TrimSpace(string(out)))
		}

		fmt.Println()
		fmt.Println("Sharer service installed and enabled.")
		fmt.Println()
		fmt.Println("Next steps:")
		fmt.Printf("  1. Configure: edit %s/broadcaster.yaml (signaller_url, password)\n", linuxConfigDir)
		fmt.Printf("  2. Start:     sudo sharer service start\n")
		fmt.Printf("  3. Status:    sudo sharer service status\n")
		fmt.Println("  4. Logs:      journalctl -u sharer -f")
		return nil
	},
}

var serviceUninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Uninstall the broadcaster systemd service",
	RunE: func(cmd *cobra.Command, args []string) error {
		if os.Geteuid() != 0 {
			return fmt.Errorf("must run as root (sudo sharer service uninstall)")
		}

		exec.Command("systemctl", "stop", linuxServiceName).Run()
		exec.Command("systemctl", "disable", linuxServiceName).Run()
		os.Remove(linuxUnitDst)
		exec.Command("systemctl", "daemon-reload").Run()
		os.Remove(linuxBinaryPath)

		fmt.Println("Sharer service uninstalled.")
		fmt.Printf("Config at %s was preserved.\n", linuxConfigDir)
		fmt.Printf("To remove config: sudo rm -rf %s\n", linuxConfigDir)
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

		if _, err := os.Stat(linuxUnitDst); os.IsNotExist(err) {
			return fmt.Errorf("service not installed — run 'sudo sharer service install' first")
		}

		out, err := exec.Command("systemctl", "start", linuxServiceName).CombinedOutput()
		if err != nil {
			return fmt.Errorf("failed to start service: %s", strings.TrimSpace(string(out)))
		}

		fmt.Println("Sharer service started.")
		fmt.Println("Logs: journalctl -u sharer -f")
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

		out, err := exec.Command("systemctl", "stop", linuxServiceName).CombinedOutput()
		if err != nil {
			return fmt.Errorf("failed to stop service: %s", strings.TrimSpace(string(out)))
		}

		fmt.Println("Sharer service stopped.")
		return nil
	},
}

var serviceStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show broadcaster service status",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(linuxUnitDst); os.IsNotExist(err) {
			fmt.Println("Service: not installed")
			return nil
		}

		out, err := exec.Command("systemctl", "status", linuxServiceName, "--no-pager").CombinedOutput()
		fmt.Println(strings.TrimSpace(string(out)))
		_ = err
		return nil
	},
}
