package transfer

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/ftpush/transport"
)

func TestErrorWrappingAndExtraction(t *testing.T) {
	cause := errors.New("connection reset")
	err := newError(KindTransientTransport, "data.bin", 8_388_608, cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "transient_transport")
	assert.Contains(t, err.Error(), "data.bin")

	wrapped := fmt.Errorf("engine call: %w", err)
	te, ok := AsError(wrapped)
	require.True(t, ok)
	assert.Equal(t, KindTransientTransport, te.Kind)
	assert.Equal(t, "data.bin", te.File)
	assert.Equal(t, int64(8_388_608), te.Offset)

	_, ok = AsError(errors.New("plain"))
	assert.False(t, ok)
}

func TestClassifyRemote(t *testing.T) {
	authErr := fmt.Errorf("login: %w", transport.ErrAuthentication)
	assert.Equal(t, KindAuthentication, classifyRemote(authErr))
	assert.Equal(t, KindTransientTransport, classifyRemote(transport.ErrNotConnected))
	assert.Equal(t, KindTransientTransport, classifyRemote(errors.New("timeout")))
}

func TestKindString(t *testing.T) {
	for kind, want := range map[Kind]string{
		KindInvalidRequest:     "invalid_request",
		KindLocalSource:        "local_source",
		KindAuthentication:     "authentication",
		KindTransientTransport: "transient_transport",
		KindIntegrity:          "integrity",
		KindFinalization:       "finalization",
	} {
		assert.Equal(t, want, kind.String())
	}
	assert.Equal(t, "kind(99)", Kind(99).String())
}
