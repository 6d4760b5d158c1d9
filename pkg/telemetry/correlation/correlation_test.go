package correlation

import (
	"context"
	"strings"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
)

func TestEnsureMintsULID(t *testing.T) {
	ctx, id := Ensure(context.Background())
	_, err := ulid.ParseStrict(id)
	assert.NoError(t, err)
	assert.Equal(t, id, FromContext(ctx))
}

func TestEnsureKeepsInboundID(t *testing.T) {
	_, id := Ensure(WithID(context.Background(), " portal:7f3a-01 "))
	assert.Equal(t, "portal:7f3a-01", id)
}

func TestWithIDRejectsUnsafeValues(t *testing.T) {
	for _, raw := range []string{"", "has space", "line\nbreak", `quote"`, strings.Repeat("a", maxIDLength+1)} {
		assert.Empty(t, FromContext(WithID(context.Background(), raw)), raw)
	}
}
