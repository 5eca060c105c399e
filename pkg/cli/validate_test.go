package cli_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/mnemora/pkg/cli"
)

func TestValidateCommand(t *testing.T) {
	t.Run("passes on a valid policy file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "policy.toml")
		gt.NoError(t, os.WriteFile(path, []byte(`
max_records = 100

[ttl]
exact_response = "15m"
`), 0600)).Required()

		err := cli.Run(context.Background(), []string{"mnemora", "validate", "--policy", path}, "test")
		gt.NoError(t, err)
	})

	t.Run("fails on a broken policy file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "policy.toml")
		gt.NoError(t, os.WriteFile(path, []byte(`
[ttl]
exact_response = "never"
`), 0600)).Required()

		err := cli.Run(context.Background(), []string{"mnemora", "validate", "--policy", path}, "test")
		gt.Value(t, err).NotNil()
	})

	t.Run("passes with defaults when no file is given", func(t *testing.T) {
		err := cli.Run(context.Background(), []string{"mnemora", "validate"}, "test")
		gt.NoError(t, err)
	})
}
