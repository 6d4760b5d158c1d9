package tracing

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesDropsUnknownKeys(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("http.route", "/api/documents"),
		attribute.String("filename", "passport.pdf"),
	)
	assert.Len(t, attrs, 1)
	assert.Equal(t, attribute.Key("http.route"), attrs[0].Key)
}

func TestSafeErrorTruncates(t *testing.T) {
	err := SafeError(errors.New(strings.Repeat("x", 1000)))
	assert.Len(t, err.Error(), maxErrorLen)
	assert.Nil(t, SafeError(nil))
}
