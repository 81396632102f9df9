package commands

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDown(t *testing.T) {
	cmd := Down()

	require.NotNil(t, cmd)
	assert.Equal(t, "down", cmd.Use)
	assert.Contains(t, cmd.Short, "Delete the stack")
	assert.Contains(t, cmd.Long, "reconstructed from the stack name")
	assert.NotNil(t, cmd.RunE, "down command should have RunE function")
}

func TestDown_Flags(t *testing.T) {
	cmd := Down()

	nameFlag := cmd.Flags().Lookup("name")
	require.NotNil(t, nameFlag, "name flag should exist")
	assert.Equal(t, "", nameFlag.DefValue)

	regionFlag := cmd.Flags().Lookup("region")
	require.NotNil(t, regionFlag, "region flag should exist")
	assert.Equal(t, "", regionFlag.DefValue)
}

func TestDown_RequiredFlags(t *testing.T) {
	cmd := Down()
	cmd.SetArgs([]string{})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	err := cmd.Execute()
	require.Error(t, err, "down without --name and --region must fail flag validation")
}
