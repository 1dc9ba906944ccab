package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"text/template"

	"github.com/spf13/cobra"
)

const (
	launchdLabel = "com.lawyrs.assistant"
	systemdUnit  = "lawyrs.service"
)

// serviceSpec is what a unit file needs to run `lawyrs serve`.
type serviceSpec struct {
	Label  string
	Exec   string
	Config string
	LogDir string
}

func serviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Run the assistant API as a user service (launchd/systemd)",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "install",
		Short: "Write a user service file that runs 'lawyrs serve' at login",
		RunE: func(cmd *cobra.Command, args []string) error {
			execPath, err := os.Executable()
			if err != nil {
				return fmt.Errorf("cannot determine executable path: %w", err)
			}
			home, err := os.UserHomeDir()
			if err != nil {
				return err
			}
			spec := serviceSpec{
				Label:  launchdLabel,
				Exec:   execPath,
				Config: resolveConfigPath(),
				LogDir: filepath.Join(home, ".lawyrs", "logs"),
			}
			path, tmpl, hint, err := servicePaths(home)
			if err != nil {
				return err
			}
			data, err := renderService(tmpl, spec)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(spec.LogDir, 0o755); err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Service installed: %s\n%s\n", path, hint)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "uninstall",
		Short: "Remove the user service file",
		RunE: func(cmd *cobra.Command, args []string) error {
			home, err := os.UserHomeDir()
			if err != nil {
				return err
			}
			path, _, _, err := servicePaths(home)
			if err != nil {
				return err
			}
			if err := os.Remove(path); err != nil {
				return fmt.Errorf("remove service file: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Service removed: %s\n", path)
			return nil
		},
	})
	return cmd
}

// servicePaths returns the unit file location, its template and a start hint
// for the running OS.
func servicePaths(home string) (path, tmpl, hint string, err error) {
	switch runtime.GOOS {
	case "darwin":
		path = filepath.Join(home, "Library", "LaunchAgents", launchdLabel+".plist")
		return path, launchdTemplate, "To start: launchctl load " + path, nil
	case "linux":
		path = filepath.Join(home, ".config", "systemd", "user", systemdUnit)
		return path, systemdTemplate, "To start: systemctl --user enable --now lawyrs", nil
	default:
		return "", "", "", fmt.Errorf("unsupported OS: %s (supported: darwin, linux)", runtime.GOOS)
	}
}

func renderService(tmpl string, spec serviceSpec) ([]byte, error) {
	t, err := template.New("service").Parse(tmpl)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, spec); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

const launchdTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{.Label}}</string>
    <key>ProgramArguments</key>
    <array>
        <string>{{.Exec}}</string>
        <string>serve</string>
        <string>--config</string>
        <string>{{.Config}}</string>
    </array>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
    <true/>
    <key>StandardOutPath</key>
    <string>{{.LogDir}}/lawyrs.log</string>
    <key>StandardErrorPath</key>
    <string>{{.LogDir}}/lawyrs-error.log</string>
</dict>
</plist>
`

const systemdTemplate = `[Unit]
Description=Lawyrs assistant API
After=network-online.target

[Service]
Type=simple
ExecStart={{.Exec}} serve --config {{.Config}}
Restart=on-failure
RestartSec=5

[Install]
WantedBy=default.target
`
