package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"pluginproxy.dev/pkg/pluginproxy/internal/domain"
)

func TestDiffCmd_PassesBothPaths(t *testing.T) {
	mw := swapWorkflow(t)

	cmd := newRootCmd()
	cmd.AddCommand(newDiffCmd())
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	mw.On("Diff", mock.Anything, mock.MatchedBy(func(args domain.DiffArgs) bool {
		return args.Before == "plugin.rbxm" && args.After == "out.rbxm"
	})).Return(nil)

	cmd.SetArgs([]string{"diff", "plugin.rbxm", "out.rbxm"})
	err := cmd.Execute()
	require.NoError(t, err)

	mw.AssertExpectations(t)
}

func TestDiffCmd_RequiresTwoArguments(t *testing.T) {
	swapWorkflow(t)

	cmd := newRootCmd()
	cmd.AddCommand(newDiffCmd())
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	cmd.SetArgs([]string{"diff", "plugin.rbxm"})
	err := cmd.Execute()
	require.Error(t, err)
}
