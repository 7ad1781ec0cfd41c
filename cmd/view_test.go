package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"pluginproxy.dev/pkg/pluginproxy/internal/domain"
)

func TestViewCmd_PassesInput(t *testing.T) {
	mw := swapWorkflow(t)

	cmd := newRootCmd()
	cmd.AddCommand(newViewCmd())
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	mw.On("View", mock.Anything, mock.MatchedBy(func(args domain.ViewArgs) bool {
		return args.Input == "plugin.rbxm" && args.Threads == defaultViewThreads
	})).Return(nil)

	cmd.SetArgs([]string{"view", "plugin.rbxm"})
	err := cmd.Execute()
	require.NoError(t, err)

	mw.AssertExpectations(t)
}

func TestViewCmd_ThreadsFlagIsPassedThrough(t *testing.T) {
	mw := swapWorkflow(t)

	cmd := newRootCmd()
	cmd.AddCommand(newViewCmd())
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	mw.On("View", mock.Anything, mock.MatchedBy(func(args domain.ViewArgs) bool {
		return args.Threads == 2
	})).Return(nil)

	cmd.SetArgs([]string{"view", "plugin.rbxm", "--threads", "2"})
	err := cmd.Execute()
	require.NoError(t, err)

	mw.AssertExpectations(t)
}

func TestViewCmd_RequiresExactlyOneArgument(t *testing.T) {
	swapWorkflow(t)

	cmd := newRootCmd()
	cmd.AddCommand(newViewCmd())
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	cmd.SetArgs([]string{"view"})
	err := cmd.Execute()
	require.Error(t, err)
}
