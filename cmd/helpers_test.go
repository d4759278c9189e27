package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/lenormf/vk-chat/internal"
	"github.com/lenormf/vk-chat/testutil"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// cmdEnv is a config file, history database and contact cache in a temp dir, with
// the remote API replaced by a fake
type cmdEnv struct {
	dir    string
	config string
	db     string
	cache  string
	cfg    *internal.Config
	api    *internal.FakeAPI
}

func newCmdEnv(t *testing.T) *cmdEnv {
	t.Helper()
	dir := testutil.CreateTempDir(t)
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))

	env := &cmdEnv{
		dir:    dir,
		config: filepath.Join(dir, "config.yaml"),
		db:     filepath.Join(dir, "history.db"),
		cache:  filepath.Join(dir, "cache"),
		api: &internal.FakeAPI{
			Token: "token",
			Self:  internal.CreateTestContact(1, "Me", "Myself"),
			Friends: []internal.Contact{
				{ID: 10, FirstName: "Ivan", LastName: "Petrov", Nickname: "vanya"},
				{ID: 20, FirstName: "Olga", LastName: "Ivanova"},
				{ID: 30, FirstName: "Ivan", LastName: "Sidorov"},
			},
		},
	}

	env.cfg = internal.DefaultConfig()
	env.cfg.Token = "token"
	env.cfg.Database = env.db
	env.cfg.CacheDir = env.cache
	env.save(t)

	prev := newRemoteAPI
	newRemoteAPI = func(cfg *internal.Config) internal.RemoteAPI { return env.api }
	t.Cleanup(func() {
		newRemoteAPI = prev
		resetFlags(rootCmd)
	})
	resetFlags(rootCmd)
	return env
}

// save writes env.cfg to the config file
func (e *cmdEnv) save(t *testing.T) {
	t.Helper()
	if err := internal.SaveConfig(e.config, e.cfg); err != nil {
		t.Fatalf("SaveConfig() error = %v", err)
	}
}

// run executes the root command with --config pointing at the env
func (e *cmdEnv) run(t *testing.T, timeout time.Duration, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetArgs(append([]string{"--config", e.config}, args...))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	setContext(rootCmd, ctx)
	err := rootCmd.ExecuteContext(ctx)
	resetFlags(rootCmd)
	return out.String(), err
}

// store opens the env's history database
func (e *cmdEnv) store(t *testing.T) *internal.MessageStore {
	t.Helper()
	store, err := internal.OpenMessageStore(e.db)
	if err != nil {
		t.Fatalf("OpenMessageStore() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// resetFlags puts every flag of c and its subcommands back to its default, since
// cobra keeps parsed values between executions
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// setContext replaces the context of c and its subcommands; cobra only hands the root
// context down to subcommands that have none yet
func setContext(c *cobra.Command, ctx context.Context) {
	c.SetContext(ctx)
	for _, sub := range c.Commands() {
		setContext(sub, ctx)
	}
}
