package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "client.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func defaults() Config {
	var c Config
	c.LoadDefaults()
	return c
}

func TestLoad(t *testing.T) {
	file := writeTemp(t, `{"server_url": "http://files.example:9000/", "timeout": "45s"}`)

	tests := []struct {
		name string
		args []string
		want Config
	}{
		{
			name: "defaults",
			args: nil,
			want: defaults(),
		},
		{
			name: "short flags",
			args: []string{"-a", "http://10.0.0.1:8000", "-t", "30s"},
			want: Config{ServerURL: "http://10.0.0.1:8000", Timeout: 30 * time.Second, MaxVideoBytes: 25 << 20},
		},
		{
			name: "long flags with equals",
			args: []string{"--server=http://host:1", "--max-video-bytes=2048"},
			want: Config{ServerURL: "http://host:1", Timeout: 2 * time.Minute, MaxVideoBytes: 2048},
		},
		{
			name: "file only keeps unset fields",
			args: []string{"-c", file},
			want: Config{ServerURL: "http://files.example:9000", Timeout: 45 * time.Second, MaxVideoBytes: 25 << 20},
		},
		{
			name: "flags override file",
			args: []string{"--config", file, "-t", "5s"},
			want: Config{ServerURL: "http://files.example:9000", Timeout: 5 * time.Second, MaxVideoBytes: 25 << 20},
		},
		{
			name: "unknown flags are ignored",
			args: []string{"--verbose", "-x", "1"},
			want: defaults(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Load(tt.args)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, *got); diff != "" {
				t.Errorf("config mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	bad := writeTemp(t, `{ this is not valid json`)

	_, err := Load([]string{"-c", bad})
	assert.Error(t, err)

	_, err = Load([]string{"-c", filepath.Join(t.TempDir(), "missing.json")})
	assert.Error(t, err)

	_, err = Load([]string{"-t", "soon"})
	assert.Error(t, err)

	_, err = Load([]string{"-t", "0s"})
	assert.Error(t, err)
}
