package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// run executes rootCmd with args after resetting flags left over from
// earlier runs.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestCommandsRegistered(t *testing.T) {
	expected := map[string]bool{
		"create-admin": false,
		"set-role":     false,
		"routes":       false,
		"migrate":      false,
	}
	for _, c := range rootCmd.Commands() {
		name := strings.Fields(c.Use)[0]
		if _, ok := expected[name]; ok {
			expected[name] = true
		}
	}
	for name, found := range expected {
		if !found {
			t.Errorf("expected command %q to be registered", name)
		}
	}
}

func TestRoutesCheck(t *testing.T) {
	file := writeFile(t, "routes.yaml", `
routes:
  - name: stock
    prefix: /api/stock
    upstream: http://stock:3002
    rewrite: /stock
    allowed_roles: [admin, manager, staff]
  - name: predict
    prefix: /api/predict
    upstream: http://prediction:5000
    allowed_roles: [admin, manager]
    timeout: 20s
`)

	out, err := run(t, "routes", "check", "--file", file)
	if err != nil {
		t.Fatalf("routes check error = %v", err)
	}
	for _, want := range []string{"stock", "http://prediction:5000", "admin,manager,staff", "20s", "2 routes OK"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRoutesCheck_Invalid(t *testing.T) {
	file := writeFile(t, "routes.yaml", `
routes:
  - name: stock
    prefix: api/stock
    upstream: http://stock:3002
    allowed_roles: [admin]
`)

	if _, err := run(t, "routes", "check", "--file", file); err == nil {
		t.Error("expected an error for a prefix without a leading slash")
	}
}

func TestRoutesCheck_TimeoutPastWriteDeadline(t *testing.T) {
	file := writeFile(t, "routes.yaml", `
routes:
  - name: predict
    prefix: /api/predict
    upstream: http://prediction:5000
    allowed_roles: [admin, manager]
    timeout: 30s
`)

	_, err := run(t, "routes", "check", "--file", file)
	if err == nil || !strings.Contains(err.Error(), "server.write_timeout") {
		t.Errorf("routes check error = %v, want a write timeout error", err)
	}
}

func TestRoutesCheck_UnknownKey(t *testing.T) {
	file := writeFile(t, "routes.yaml", `
routes:
  - name: stock
    prefix: /api/stock
    upstreem: http://stock:3002
    allowed_roles: [admin]
`)

	if _, err := run(t, "routes", "check", "--file", file); err == nil {
		t.Error("expected an error for a misspelled key")
	}
}

func TestCreateAdmin(t *testing.T) {
	out, err := run(t, "create-admin", "--email", "root@example.com", "--password", "bootstrap-pass")
	if err != nil {
		t.Fatalf("create-admin error = %v", err)
	}
	if !strings.Contains(out, "Created admin root@example.com") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestCreateAdmin_EnvFallback(t *testing.T) {
	t.Setenv("ADMIN_EMAIL", "ops@example.com")
	t.Setenv("ADMIN_PASSWORD", "bootstrap-pass")

	out, err := run(t, "create-admin")
	if err != nil {
		t.Fatalf("create-admin error = %v", err)
	}
	if !strings.Contains(out, "ops@example.com") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestCreateAdmin_RequiresEmail(t *testing.T) {
	t.Setenv("ADMIN_EMAIL", "")

	if _, err := run(t, "create-admin", "--password", "bootstrap-pass"); err == nil {
		t.Error("expected an error without an email")
	}
}

func TestSetRole_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown role", []string{"set-role", "someone@example.com", "owner"}},
		{"unknown user", []string{"set-role", "someone@example.com", "staff"}},
		{"missing args", []string{"set-role", "someone@example.com"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := run(t, tt.args...); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestMigrate_RequiresPostgres(t *testing.T) {
	_, err := run(t, "migrate", "version")
	if err == nil || !strings.Contains(err.Error(), "postgres") {
		t.Errorf("error = %v, want postgres requirement", err)
	}
}
