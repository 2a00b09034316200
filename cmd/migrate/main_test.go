package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr bool
		rest    []string
	}{
		{name: "no command", args: nil, wantErr: true},
		{name: "unknown", args: []string{"sideways"}, wantErr: true},
		{name: "up", args: []string{"up"}, rest: []string{}},
		{name: "step without count", args: []string{"step"}, wantErr: true},
		{name: "step", args: []string{"step", "-1"}, rest: []string{"-1"}},
		{name: "create", args: []string{"create", "add_company_region"}, rest: []string{"add_company_region"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, rest, err := lookup(tt.args)
			if tt.wantErr {
				assert.ErrorIs(t, err, errUsage)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, cmd.run)
			assert.Equal(t, tt.rest, rest)
		})
	}
}

func TestCommands_OfflineNeedNoDatabase(t *testing.T) {
	assert.True(t, commands["create"].offline)
	assert.True(t, commands["list"].offline)
	assert.False(t, commands["up"].offline)
	assert.False(t, commands["force"].offline)
}

func TestIntArg(t *testing.T) {
	n, err := intArg("version", "3")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = intArg("version", "three")
	assert.ErrorIs(t, err, errUsage)
}
