package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/auditwise/internal/models"
)

func resetScanFlags(t *testing.T) {
	t.Helper()
	reset := func() {
		scanFigma, scanFigmaToken, scanURL, scanFile, scanTitle = "", "", "", "", ""
		scanDepth = string(models.AuditDepthStandard)
		scanSave = false
	}
	reset()
	t.Cleanup(reset)
}

func TestScanInput(t *testing.T) {
	dir := testEnv(t)
	resetScanFlags(t)

	scanURL = "https://www.example.com"
	in, err := scanInput()
	require.NoError(t, err)
	assert.Equal(t, models.DesignTypeURL, in.Type)

	scanURL = ""
	scanFigma = "https://www.figma.com/design/KEY/Checkout"
	in, err = scanInput()
	require.NoError(t, err)
	assert.Equal(t, models.DesignTypeFigma, in.Type)

	scanFigma = ""
	path := filepath.Join(dir, "shot.png")
	require.NoError(t, os.WriteFile(path, []byte("\x89PNG\r\n\x1a\n...."), 0o644))
	scanFile = path
	in, err = scanInput()
	require.NoError(t, err)
	assert.Equal(t, models.DesignTypePNG, in.Type)
	assert.Equal(t, "shot.png", in.FileName)

	txt := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(txt, []byte("hello"), 0o644))
	scanFile = txt
	_, err = scanInput()
	assert.Error(t, err)

	scanFile = ""
	scanURL = "ftp://example.com"
	_, err = scanInput()
	assert.Error(t, err)
}

func TestScanRun_FallbackAndSave(t *testing.T) {
	testEnv(t)
	resetScanFlags(t)

	scanURL = "https://www.example.com/pricing"
	scanSave = true

	require.NoError(t, scanRun(context.Background()))
	out := stdout()
	assert.Contains(t, out, "example.com")
	assert.Contains(t, out, "Needs Attention")
	assert.Contains(t, out, "Saved audit")

	s, err := getStore()
	require.NoError(t, err)
	audits, err := s.ListAudits(context.Background(), "local")
	require.NoError(t, err)
	require.Len(t, audits, 1)
	assert.Len(t, audits[0].Issues, 6)
	assert.Equal(t, models.DesignTypeURL, audits[0].DesignType)
}

func TestScanRun_DryRun(t *testing.T) {
	testEnv(t)
	resetScanFlags(t)
	dryRun = true
	t.Cleanup(func() { dryRun = false })

	scanURL = "https://example.com"
	require.NoError(t, scanRun(context.Background()))
	assert.NotContains(t, stdout(), "Score")
}
