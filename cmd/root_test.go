package cmd

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestRootCommand(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr bool
		want    string
	}{
		{
			name: "version flag",
			args: []string{"--version"},
			want: "commit:",
		},
		{
			name: "help flag",
			args: []string{"--help"},
			want: "vkchat poll",
		},
		{
			name:    "unknown command",
			args:    []string{"nonexistent-command"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer resetFlags(rootCmd)
			rootCmd.SetArgs(tt.args)
			var stdout, stderr bytes.Buffer
			rootCmd.SetOut(&stdout)
			rootCmd.SetErr(&stderr)

			err := rootCmd.Execute()
			if (err != nil) != tt.wantErr {
				t.Errorf("rootCmd.Execute() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.want != "" && !strings.Contains(stdout.String(), tt.want) {
				t.Errorf("output = %q, want it to contain %q", stdout.String(), tt.want)
			}
		})
	}
}

func TestRootCommand_Subcommands(t *testing.T) {
	for _, name := range []string{"poll", "friends", "send", "dialogs", "history", "export", "healthcheck"} {
		found := false
		for _, c := range rootCmd.Commands() {
			if c.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("command %q not registered", name)
		}
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	env := newCmdEnv(t)

	configPath = env.config
	tokenFlag = "override"
	dbPath = "/tmp/other.db"
	defer func() {
		configPath, tokenFlag, dbPath = "", "", ""
	}()

	cfg, path, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if path != env.config {
		t.Errorf("loadConfig() path = %q, want %q", path, env.config)
	}
	if cfg.Token != "override" {
		t.Errorf("cfg.Token = %q, want %q", cfg.Token, "override")
	}
	if cfg.Database != "/tmp/other.db" {
		t.Errorf("cfg.Database = %q, want %q", cfg.Database, "/tmp/other.db")
	}
}

func TestRequireToken(t *testing.T) {
	env := newCmdEnv(t)
	env.cfg.Token = ""
	env.save(t)

	for _, args := range [][]string{
		{"friends"},
		{"dialogs"},
		{"send", "10", "hi"},
		{"poll"},
	} {
		t.Run(args[0], func(t *testing.T) {
			_, err := env.run(t, 2*time.Second, args...)
			if err == nil || !strings.Contains(err.Error(), "no access token") {
				t.Errorf("%s error = %v, want a missing token error", args[0], err)
			}
		})
	}
}

func TestInvalidConfig(t *testing.T) {
	env := newCmdEnv(t)
	env.cfg.LongPoll.Port = 0
	env.save(t)

	_, err := env.run(t, 2*time.Second, "history")
	if err == nil || !strings.Contains(err.Error(), "long_poll.port") {
		t.Errorf("history error = %v, want an invalid config error", err)
	}
}
