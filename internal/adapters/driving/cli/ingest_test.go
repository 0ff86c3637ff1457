package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bldr-labs/bldr/internal/core/ports/driving"
)

func TestIngestCmd_Use(t *testing.T) {
	assert.Equal(t, "ingest [path]", ingestCmd.Use)
}

func TestIngestCmd_HasModeFlag(t *testing.T) {
	flag := ingestCmd.Flags().Lookup("mode")
	require.NotNil(t, flag, "mode flag should exist")
	assert.Equal(t, "m", flag.Shorthand)
	assert.Equal(t, "full", flag.DefValue)
}

func TestIngestCmd_PrintsReport(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"ingest", "./docs"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "Ingested 2, skipped 1 (duplicates), failed 0.")
	assert.Contains(t, buf.String(), "Process: proc-ingest-1")
}

func TestIngestCmd_PrintsPerFileFailures(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	ingestService = &mockIngestService{
		report: &driving.IngestReport{
			ProcessID: "proc-ingest-2",
			Ingested:  1,
			Failed:    1,
			Failures:  map[string]string{"./docs/broken.pdf": "extracting text: malformed xref"},
		},
	}

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"ingest", "./docs"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "failed: ./docs/broken.pdf: extracting text: malformed xref")
}

func TestIngestCmd_SampledMode(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"ingest", "--mode", "sampled", "./archive"})
	defer func() {
		rootCmd.SetArgs(nil)
		ingestMode = "full"
	}()

	err := rootCmd.Execute()

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "Ingested")
}

func TestIngestCmd_RejectsUnknownMode(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"ingest", "--mode", "turbo", "./docs"})
	defer func() {
		rootCmd.SetArgs(nil)
		ingestMode = "full"
	}()

	err := rootCmd.Execute()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid mode")
	assert.Contains(t, err.Error(), "turbo")
}

func TestIngestCmd_ServiceNotConfigured(t *testing.T) {
	// Called directly so the root command does not wire real services.
	oldService := ingestService
	ingestService = nil
	defer func() {
		ingestService = oldService
	}()

	err := runIngest(ingestCmd, []string{"./docs"})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "ingest service not configured")
}

func TestIngestCmd_ServiceError(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	ingestService = &mockIngestService{err: errService}

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"ingest", "./docs"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "ingest failed")
}
