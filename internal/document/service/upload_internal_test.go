package service

import (
	"path"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/smallbiznis/schoolbill/internal/config"
	"github.com/smallbiznis/schoolbill/internal/document/domain"
	"github.com/smallbiznis/schoolbill/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileExtension(t *testing.T) {
	cases := map[string]string{
		"report.exe":      ".exe",
		"REPORT.PDF":      ".pdf",
		"archive.tar.pdf": ".pdf",
		".pdf":            "",
		"noext":           "",
		"photo.JpEg":      ".jpeg",
	}
	for name, want := range cases {
		assert.Equal(t, want, fileExtension(name), name)
	}
}

func TestValidateUpload(t *testing.T) {
	policy := config.DefaultPolicy().Documents

	_, _, err := validateUpload(domain.UploadRequest{Filename: "   ", Size: 1}, policy.MaxUploadBytes, policy.AllowedExtensions)
	assert.ErrorIs(t, err, domain.ErrInvalidFilename)

	_, _, err = validateUpload(domain.UploadRequest{Filename: "a.pdf", Size: -1}, policy.MaxUploadBytes, policy.AllowedExtensions)
	assert.ErrorIs(t, err, domain.ErrInvalidSize)

	_, _, err = validateUpload(domain.UploadRequest{Filename: ".pdf", Size: 1}, policy.MaxUploadBytes, policy.AllowedExtensions)
	assert.ErrorIs(t, err, domain.ErrUnsupportedExtension)

	name, ext, err := validateUpload(domain.UploadRequest{Filename: `C:\Users\amina\Scan.JPG`, Size: 1}, policy.MaxUploadBytes, policy.AllowedExtensions)
	require.NoError(t, err)
	assert.Equal(t, "Scan.JPG", name)
	assert.Equal(t, ".jpg", ext)
}

func TestCleanFilename_CutsOnRuneBoundary(t *testing.T) {
	cases := []string{
		strings.Repeat("é", 200) + ".pdf",
		"a" + strings.Repeat("è", 200) + ".docx",
		strings.Repeat("報", 120) + ".png",
		"bad\xffname.pdf",
	}
	for _, raw := range cases {
		name := cleanFilename(raw)
		assert.True(t, utf8.ValidString(name), raw)
		assert.LessOrEqual(t, len(name), maxFilenameLen, raw)
		assert.Equal(t, path.Ext(raw), path.Ext(name), raw)
	}
}

func TestNewHandleIsStorable(t *testing.T) {
	for _, name := range []string{"Relevé de notes (2024).pdf", "?.pdf", strings.Repeat("long ", 60) + ".docx"} {
		ext := fileExtension(name)
		handle := newHandle(name, ext)
		assert.True(t, storage.ValidHandle(handle), handle)
		assert.True(t, strings.HasSuffix(handle, ext), handle)
	}
}
