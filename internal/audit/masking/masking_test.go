package masking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskReference(t *testing.T) {
	assert.Equal(t, "", MaskReference("  "))
	assert.Equal(t, "****", MaskReference("1234"))
	assert.Equal(t, "****7890", MaskReference("1234567890"))
	assert.Equal(t, "MPESA-****XY12", MaskReference("MPESA-QWERTYXY12"))
}

func TestMaskMetadata(t *testing.T) {
	out := MaskMetadata(map[string]any{
		"reference": "BANK-000111222",
		"amount":    "100.00",
		"":          "dropped",
	}, "reference")

	assert.Equal(t, "BANK-****1222", out["reference"])
	assert.Equal(t, "100.00", out["amount"])
	assert.NotContains(t, out, "")
	assert.Nil(t, MaskMetadata(nil, "reference"))
}
