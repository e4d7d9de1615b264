package docker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseComposeAction(t *testing.T) {
	tests := []struct {
		in      string
		want    ComposeAction
		wantErr bool
	}{
		{in: "up", want: ComposeUp},
		{in: "start", want: ComposeUp},
		{in: "BUILD", want: ComposeBuild},
		{in: "stop", want: ComposeDown},
		{in: "down", want: ComposeDown},
		{in: "logs", want: ComposeLogs},
		{in: "clean", want: ComposeClean},
		{in: "restart", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseComposeAction(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComposeArgs(t *testing.T) {
	files := []string{"docker-compose.dev.yml"}

	assert.Equal(t, []string{"compose", "-f", "docker-compose.dev.yml", "up", "--build"}, ComposeArgs(ComposeUp, files))
	assert.Equal(t, []string{"compose", "-f", "docker-compose.dev.yml", "build", "--no-cache"}, ComposeArgs(ComposeBuild, files))
	assert.Equal(t, []string{"compose", "down"}, ComposeArgs(ComposeDown, nil))
	assert.Equal(t, []string{"compose", "-f", "a.yml", "-f", "b.yml", "logs", "-f"}, ComposeArgs(ComposeLogs, []string{"a.yml", "b.yml"}))
	assert.Nil(t, ComposeArgs(ComposeClean, files))
}

func TestRunCompose_CleanHasNoComposeForm(t *testing.T) {
	err := RunCompose(context.Background(), ComposeClean, ComposeOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no docker compose form")
}
