package guard

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/kafkalens/internal/testutil"
)

func TestIsAffirmative(t *testing.T) {
	cases := map[string]bool{
		"y":      true,
		"Y":      true,
		"y\n":    true,
		"Y\r\n":  true,
		"  y \n": false,
		" y":     false,
		"y ":     false,
		"":       false,
		"\n":     false,
		"yes":    false,
		"n":      false,
		"N":      false,
		"yy":     false,
	}
	for in, want := range cases {
		assert.Equal(t, want, IsAffirmative(in), "input %q", in)
	}
}

func TestRunAnswers(t *testing.T) {
	cases := []struct {
		name      string
		input     string
		kind      Kind
		wantState State
		wantCalls int
	}{
		{name: "yes-group", input: "y\n", kind: KindGroup, wantState: StateExecuted, wantCalls: 1},
		{name: "upper-topic", input: "Y\n", kind: KindTopic, wantState: StateExecuted, wantCalls: 1},
		{name: "empty", input: "\n", kind: KindGroup, wantState: StateCancelled},
		{name: "eof", input: "", kind: KindTopic, wantState: StateCancelled},
		{name: "yes-word", input: "yes\n", kind: KindGroup, wantState: StateCancelled},
		{name: "no", input: "n\n", kind: KindTopic, wantState: StateCancelled},
		{name: "padded-yes", input: " y \n", kind: KindGroup, wantState: StateCancelled},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fc := testutil.NewFakeCluster()
			var out bytes.Buffer

			d, err := Run(context.Background(), tc.kind, "payments", NewPrompt(strings.NewReader(tc.input), &out), fc)
			require.NoError(t, err)
			assert.Equal(t, tc.wantState, d.State)
			assert.Equal(t, tc.wantCalls, len(fc.DeletedGroup)+len(fc.DeletedTopic))
			assert.Contains(t, out.String(), "delete "+string(tc.kind)+" 'payments'")
			assert.Contains(t, out.String(), "[y/N]")
		})
	}
}

func TestRunFailure(t *testing.T) {
	fc := testutil.NewFakeCluster()
	fc.DeleteErr = errors.New("GROUP_ID_NOT_FOUND")

	d, err := Run(context.Background(), KindGroup, "ghost", AlwaysConfirm{}, fc)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, d.State)
	require.Error(t, d.Err)
	assert.Equal(t, []string{"ghost"}, fc.DeletedGroup)
}

func TestExecuteRequiresConfirmation(t *testing.T) {
	fc := testutil.NewFakeCluster()
	d := NewDeletion(KindTopic, "orders")

	err := d.Execute(context.Background(), fc)
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Empty(t, fc.DeletedTopic)

	require.NoError(t, d.Confirm(context.Background(), AlwaysConfirm{}))
	require.ErrorIs(t, d.Confirm(context.Background(), AlwaysConfirm{}), ErrInvalidTransition)
}

func TestPromptInterrupted(t *testing.T) {
	fc := testutil.NewFakeCluster()
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d, err := Run(ctx, KindTopic, "orders", NewPrompt(pr, io.Discard), fc)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateCancelled, d.State)
	assert.Empty(t, fc.DeletedTopic)
}
