package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	configForce, userID, levelsMax, achievementsHidden = false, "", 20, false
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// resetFlags clears the Changed state and restores defaults of every flag,
// since the command tree is shared between runs.
func resetFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			sv.Replace(nil)
		} else {
			f.Value.Set(f.DefValue)
		}
		f.Changed = false
	})
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func TestLevels(t *testing.T) {
	out, err := run(t, "levels", "--max", "4")
	if err != nil {
		t.Fatalf("levels error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 5 {
		t.Fatalf("expected header + 4 rows, got %d:\n%s", len(lines), out)
	}
	if f := strings.Fields(lines[2]); f[0] != "2" || f[1] != "20" || f[2] != "40" {
		t.Errorf("level 2 row = %v, want [2 20 40]", f)
	}
	if f := strings.Fields(lines[4]); f[1] != "120" {
		t.Errorf("level 4 total = %s, want 120", f[1])
	}
}

func TestConfigInit(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CHRONIK_HOME", dir)

	if _, err := run(t, "config", "init"); err != nil {
		t.Fatalf("config init error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "config.toml")); err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if _, err := run(t, "config", "init"); err == nil {
		t.Error("second init without --force should fail")
	}
	if _, err := run(t, "config", "init", "--force"); err != nil {
		t.Errorf("init --force error: %v", err)
	}

	out, err := run(t, "config", "show")
	if err != nil {
		t.Fatalf("config show error: %v", err)
	}
	if !strings.Contains(out, "port = 8420") {
		t.Errorf("config show missing api port:\n%s", out)
	}
}

func TestUserAndSeed(t *testing.T) {
	t.Setenv("CHRONIK_HOME", t.TempDir())

	out, err := run(t, "seed")
	if err != nil {
		t.Fatalf("seed error: %v", err)
	}
	if !strings.HasPrefix(out, "Seeded ") {
		t.Errorf("seed output = %q", out)
	}
	if out, _ = run(t, "seed"); !strings.HasPrefix(out, "Seeded 0 ") {
		t.Errorf("second seed should insert nothing, got %q", out)
	}

	if _, err := run(t, "user", "add", "Ada", "--id", "u1"); err != nil {
		t.Fatalf("user add error: %v", err)
	}
	if _, err := run(t, "user", "add", "Ada", "--id", "u1"); err == nil {
		t.Error("duplicate user id should fail")
	}
	out, err = run(t, "user", "list")
	if err != nil {
		t.Fatalf("user list error: %v", err)
	}
	if !strings.Contains(out, "u1") || !strings.Contains(out, "Ada") {
		t.Errorf("user list output:\n%s", out)
	}

	out, err = run(t, "achievements")
	if err != nil {
		t.Fatalf("achievements error: %v", err)
	}
	if !strings.Contains(out, "first_habit") {
		t.Errorf("catalog listing missing first_habit:\n%s", out)
	}
}

func TestUserPrefs(t *testing.T) {
	t.Setenv("CHRONIK_HOME", t.TempDir())
	if _, err := run(t, "user", "add", "Ada", "--id", "u1"); err != nil {
		t.Fatalf("user add error: %v", err)
	}

	out, err := run(t, "user", "prefs", "u1")
	if err != nil {
		t.Fatalf("user prefs error: %v", err)
	}
	if !strings.Contains(out, "09:00") || !strings.Contains(out, "3,1,0") {
		t.Errorf("expected default settings:\n%s", out)
	}

	out, err = run(t, "user", "prefs", "u1", "--reminder-time", "20:00", "--deadline-days", "7,1", "--streak-warnings=false")
	if err != nil {
		t.Fatalf("user prefs update error: %v", err)
	}
	for _, want := range []string{"20:00", "7,1"} {
		if !strings.Contains(out, want) {
			t.Errorf("updated settings missing %q:\n%s", want, out)
		}
	}

	// A later run without flags shows the stored values and keeps untouched ones.
	out, _ = run(t, "user", "prefs", "u1")
	lines := map[string]string{}
	for _, l := range strings.Split(strings.TrimSpace(out), "\n") {
		if f := strings.Fields(l); len(f) == 2 {
			lines[f[0]] = f[1]
		}
	}
	if lines["reminder_time"] != "20:00" || lines["streak_warnings"] != "false" || lines["push"] != "true" {
		t.Errorf("stored settings = %v", lines)
	}

	if _, err := run(t, "user", "prefs", "u1", "--reminder-time", "8am"); err == nil {
		t.Error("invalid reminder time should fail")
	}
	if _, err := run(t, "user", "prefs", "u1", "--deadline-days", "99"); err == nil {
		t.Error("out of range warning day should fail")
	}
	if _, err := run(t, "user", "prefs", "ghost"); err == nil {
		t.Error("unknown user should fail")
	}
}

func TestRemind(t *testing.T) {
	t.Setenv("CHRONIK_HOME", t.TempDir())

	out, err := run(t, "remind", "deadline-warning")
	if err != nil {
		t.Fatalf("remind error: %v", err)
	}
	if !strings.Contains(out, "deadline-warning finished") {
		t.Errorf("remind output = %q", out)
	}
	if _, err := run(t, "remind", "nightly"); err == nil {
		t.Error("unknown job should fail")
	}
}

func TestPubkey_Stable(t *testing.T) {
	t.Setenv("CHRONIK_HOME", t.TempDir())

	first, err := run(t, "pubkey")
	if err != nil {
		t.Fatalf("pubkey error: %v", err)
	}
	second, _ := run(t, "pubkey")
	if len(strings.TrimSpace(first)) != 64 || first != second {
		t.Errorf("pubkey outputs %q and %q", first, second)
	}
}
