package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nutrigate/internal/platform"
	"nutrigate/internal/tenant"
)

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{
			name: "not configured maps to auth required",
			err:  &tenant.NotConfiguredError{},
			want: ExitCodeAuthRequired,
		},
		{
			name: "unauthorized maps to auth required",
			err:  &tenant.UnauthorizedError{},
			want: ExitCodeAuthRequired,
		},
		{
			name: "no pending authorization maps to auth required",
			err:  &tenant.NoPendingAuthorizationError{},
			want: ExitCodeAuthRequired,
		},
		{
			name: "upstream rejection maps to auth failed",
			err:  &platform.UpstreamError{Endpoint: "https://auth.test", Status: 401, Body: "denied"},
			want: ExitCodeAuthFailed,
		},
		{
			name: "wrapped errors are unwrapped",
			err:  fmt.Errorf("login failed: %w", &tenant.UnauthorizedError{}),
			want: ExitCodeAuthRequired,
		},
		{
			name: "generic errors map to general error",
			err:  errors.New("something broke"),
			want: ExitCodeError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, getExitCode(tt.err))
		})
	}
}

func TestVersionCommand(t *testing.T) {
	SetVersion("1.2.3")
	defer SetVersion("")

	cmd := newVersionCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "nutrigate version 1.2.3\n", out.String())
}

func TestSetVersion(t *testing.T) {
	SetVersion("9.9.9")
	defer SetVersion("")
	assert.Equal(t, "9.9.9", GetVersion())
}
