package cmd

import (
	"bytes"
	"runtime"
	"strings"
	"testing"
)

func TestNewVersionCmd(t *testing.T) {
	versionCmd := newVersionCmd()

	if versionCmd.Use != "version" {
		t.Errorf("Expected Use to be 'version', got %s", versionCmd.Use)
	}
	if versionCmd.Short == "" {
		t.Error("Expected Short description to be set")
	}
	if versionCmd.Flags().Lookup("short") == nil {
		t.Error("Expected a --short flag")
	}
}

func TestVersionCommandExecution(t *testing.T) {
	originalVersion := rootCmd.Version
	defer func() { rootCmd.Version = originalVersion }()
	rootCmd.Version = "1.2.3-test"

	tests := []struct {
		name      string
		args      []string
		wantFirst string
		wantParts []string
	}{
		{
			name:      "full",
			args:      []string{},
			wantFirst: "snektest version 1.2.3-test",
			wantParts: []string{"go:       " + runtime.Version(), "starlark: ", "platform: " + runtime.GOOS + "/" + runtime.GOARCH},
		},
		{
			name:      "short",
			args:      []string{"--short"},
			wantFirst: "1.2.3-test",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			versionCmd := newVersionCmd()
			var buf bytes.Buffer
			versionCmd.SetOut(&buf)
			versionCmd.SetArgs(tt.args)

			if err := versionCmd.Execute(); err != nil {
				t.Fatalf("Error executing version: %v", err)
			}
			lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
			if lines[0] != tt.wantFirst {
				t.Errorf("Expected first line %q, got %q", tt.wantFirst, lines[0])
			}
			if tt.wantParts == nil && len(lines) != 1 {
				t.Errorf("Expected a single line, got %q", buf.String())
			}
			for _, part := range tt.wantParts {
				if !strings.Contains(buf.String(), part) {
					t.Errorf("Expected output to contain %q, got %q", part, buf.String())
				}
			}
		})
	}
}

func TestModuleVersionUnknownDependency(t *testing.T) {
	if got := moduleVersion("example.com/not/a/dependency"); got != "unknown" {
		t.Errorf("Expected unknown, got %q", got)
	}
}

func TestVersionCommandRejectsArguments(t *testing.T) {
	versionCmd := newVersionCmd()
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	versionCmd.SetErr(&buf)
	versionCmd.SetArgs([]string{"extra"})

	if err := versionCmd.Execute(); err == nil {
		t.Error("Expected an error for unexpected arguments")
	}
}
