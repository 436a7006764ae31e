package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientForwarderSetsTimeout(t *testing.T) {
	f := NewClientForwarder(5 * time.Second)
	require.NotNil(t, f)
	assert.Equal(t, 5*time.Second, f.timeout)
	assert.True(t, f.client.StreamResponseBody)
	assert.NotNil(t, f.client.Dial)
}

func TestSsrfSafeDialRejectsLoopback(t *testing.T) {
	_, err := ssrfSafeDial("127.0.0.1:80")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ssrf protection")
}

func TestSsrfSafeDialRejectsLinkLocalMetadataAddress(t *testing.T) {
	_, err := ssrfSafeDial("169.254.169.254:80")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ssrf protection")
}

func TestSsrfSafeDialRejectsMalformedAddress(t *testing.T) {
	_, err := ssrfSafeDial("not-a-valid-addr")
	require.Error(t, err)
}
