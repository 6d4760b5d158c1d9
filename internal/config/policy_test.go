package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDefaultPolicyMatchesAdmissionRules(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, int64(10_485_760), p.Documents.MaxUploadBytes)
	assert.ElementsMatch(t, []string{".jpg", ".jpeg", ".png", ".webp", ".pdf", ".doc", ".docx"}, p.Documents.AllowedExtensions)
	assert.Equal(t, 3, p.Billing.MaxConflictRetries)
}

func TestStaticPolicyHolderNormalizesExtensions(t *testing.T) {
	p := DefaultPolicy()
	p.Documents.AllowedExtensions = []string{"PDF", " .Png ", ""}

	holder := NewStaticPolicyHolder(p)
	assert.Equal(t, []string{".pdf", ".png"}, holder.Documents().AllowedExtensions)
}

func TestNewPolicyHolderReadsFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte(`billing:
  maxConflictRetries: 5
documents:
  maxUploadBytes: 2048
  allowedExtensions: [".pdf"]
  orphanGracePeriod: 10m
  integrityInterval: 1h
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "policy.yml"), content, 0o600))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	holder, err := NewPolicyHolder(zap.NewNop())
	require.NoError(t, err)

	p := holder.Get()
	assert.Equal(t, 5, p.Billing.MaxConflictRetries)
	assert.Equal(t, int64(2048), p.Documents.MaxUploadBytes)
	assert.Equal(t, []string{".pdf"}, p.Documents.AllowedExtensions)
	assert.Equal(t, 10*time.Minute, p.Documents.OrphanGracePeriod)
}

func TestValidatePolicyRejectsEmptyExtensions(t *testing.T) {
	p := DefaultPolicy()
	p.Documents.AllowedExtensions = nil
	assert.Error(t, validatePolicy(p))

	p = DefaultPolicy()
	p.Billing.MaxConflictRetries = 0
	assert.Error(t, validatePolicy(p))
}
