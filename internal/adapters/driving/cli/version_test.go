package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCmd_PrintsVersion(t *testing.T) {
	tests := []struct {
		name    string
		version string
		want    string
	}{
		{"release build", "1.4.0", "bldr version 1.4.0"},
		{"default dev build", "dev", "bldr version dev"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := version
			version = tt.version
			defer func() { version = original }()

			buf := new(bytes.Buffer)
			rootCmd.SetOut(buf)
			rootCmd.SetArgs([]string{"version"})
			defer rootCmd.SetArgs(nil)

			require.NoError(t, rootCmd.Execute())
			assert.Contains(t, buf.String(), tt.want)
		})
	}
}
