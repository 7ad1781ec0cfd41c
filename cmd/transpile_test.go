package cmd

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"pluginproxy.dev/pkg/pluginproxy/internal/domain"
)

// mockWorkflow stands in for domain.Workflow across the command tests.
type mockWorkflow struct {
	mock.Mock
}

func (mw *mockWorkflow) Transpile(ctx context.Context, args domain.TranspileArgs) error {
	return mw.Called(ctx, args).Error(0)
}

func (mw *mockWorkflow) View(ctx context.Context, args domain.ViewArgs) error {
	return mw.Called(ctx, args).Error(0)
}

func (mw *mockWorkflow) Diff(ctx context.Context, args domain.DiffArgs) error {
	return mw.Called(ctx, args).Error(0)
}

func swapWorkflow(t *testing.T) *mockWorkflow {
	t.Helper()

	mw := &mockWorkflow{}

	originalWorkflow := workflow
	workflow = mw
	t.Cleanup(func() { workflow = originalWorkflow })

	return mw
}

func TestTranspileCmd_PassesInputAndOutput(t *testing.T) {
	mw := swapWorkflow(t)

	cmd := newRootCmd()
	cmd.AddCommand(newTranspileCmd())
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	mw.On("Transpile", mock.Anything, mock.MatchedBy(func(args domain.TranspileArgs) bool {
		return args.Input == "plugin.rbxm" &&
			args.Output == "lib.rbxm" &&
			!args.IncludeLibs &&
			!args.Watch
	})).Return(nil)

	cmd.SetArgs([]string{"transpile", "plugin.rbxm", "--output", "lib.rbxm"})
	err := cmd.Execute()
	require.NoError(t, err)

	mw.AssertExpectations(t)
}

func TestTranspileCmd_IncludeLibsDisablesExclusion(t *testing.T) {
	mw := swapWorkflow(t)

	cmd := newRootCmd()
	configureRootFlags(cmd)
	cmd.AddCommand(newTranspileCmd())
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	mw.On("Transpile", mock.Anything, mock.MatchedBy(func(args domain.TranspileArgs) bool {
		return args.IncludeLibs
	})).Return(nil)

	cmd.SetArgs([]string{"transpile", "plugin.rbxm", "--include-libs"})
	err := cmd.Execute()
	require.NoError(t, err)

	mw.AssertExpectations(t)
}

func TestTranspileCmd_DefaultExcludeGlobsReachTheWorkflow(t *testing.T) {
	mw := swapWorkflow(t)

	cmd := newRootCmd()
	cmd.AddCommand(newTranspileCmd())
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	mw.On("Transpile", mock.Anything, mock.MatchedBy(func(args domain.TranspileArgs) bool {
		return len(args.Exclude) == len(domain.DefaultExcludeGlobs())
	})).Return(nil)

	cmd.SetArgs([]string{"transpile", "plugin.rbxm"})
	err := cmd.Execute()
	require.NoError(t, err)

	mw.AssertExpectations(t)
}

func TestTranspileCmd_RejectsExtraArguments(t *testing.T) {
	swapWorkflow(t)

	cmd := newRootCmd()
	cmd.AddCommand(newTranspileCmd())
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	cmd.SetArgs([]string{"transpile", "a.rbxm", "b.rbxm"})
	err := cmd.Execute()
	require.Error(t, err)
}
