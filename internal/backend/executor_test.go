package backend

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	stdout  string
	stderr  string
	err     error
	gotName string
	gotArgs []string
	gotIn   string
}

func (f *fakeRunner) Run(_ context.Context, name string, args []string, stdin io.Reader) ([]byte, []byte, error) {
	f.gotName, f.gotArgs = name, args
	if stdin != nil {
		b, _ := io.ReadAll(stdin)
		f.gotIn = string(b)
	}
	return []byte(f.stdout), []byte(f.stderr), f.err
}

func TestExecutor_Execute(t *testing.T) {
	runner := &fakeRunner{stdout: "How are you?\n"}
	e := NewExecutorWithRunner("/usr/bin/translate", time.Second, runner)

	stdout, _, err := e.Execute(context.Background(), []string{"--model", "/m"}, strings.NewReader("আপনি কেমন আছেন?"))
	require.NoError(t, err)

	assert.Equal(t, "How are you?\n", string(stdout))
	assert.Equal(t, "/usr/bin/translate", runner.gotName)
	assert.Equal(t, []string{"--model", "/m"}, runner.gotArgs)
	assert.Equal(t, "আপনি কেমন আছেন?", runner.gotIn)
}

func TestNewExecutor_MissingBinary(t *testing.T) {
	_, err := NewExecutor("/definitely/not/here/translate", time.Second)
	assert.ErrorContains(t, err, "binary not found")
}
