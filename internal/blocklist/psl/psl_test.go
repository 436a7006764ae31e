package psl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrepareSingleLabelSubdomain(t *testing.T) {
	f, ok := Prepare("ads.example.com")
	require.True(t, ok)
	assert.Equal(t, "ads.example.com", f.Domain)
	assert.Equal(t, "ads", f.SubdomainWithoutWWW)
	assert.Equal(t, "example.com", f.ETLDPlus2)
	assert.Equal(t, "", f.PathSuffix)
}

func TestPrepareBareETLDPlus1(t *testing.T) {
	f, ok := Prepare("example.com")
	require.True(t, ok)
	assert.Equal(t, "", f.SubdomainWithoutWWW)
	assert.Equal(t, "", f.ETLDPlus2)
}

func TestPrepareStripsWWW(t *testing.T) {
	f, ok := Prepare("www.example.com/path")
	require.True(t, ok)
	assert.Equal(t, "", f.SubdomainWithoutWWW)
	assert.Equal(t, "/path", f.PathSuffix)
}

func TestPrepareStripsWWWWithDeeperSubdomain(t *testing.T) {
	f, ok := Prepare("cdn.www.example.com")
	require.True(t, ok)
	assert.Equal(t, "cdn", f.SubdomainWithoutWWW)
}

func TestPrepareStripsUserInfo(t *testing.T) {
	f, ok := Prepare("user@ads.example.com")
	require.True(t, ok)
	assert.Equal(t, "ads.example.com", f.Domain)
}

func TestPrepareRejectsColon(t *testing.T) {
	_, ok := Prepare("example.com:8080")
	assert.False(t, ok)
}

func TestPrepareRejectsNoDot(t *testing.T) {
	_, ok := Prepare("localhost")
	assert.False(t, ok)
}

func TestPrepareRejectsIPLiteral(t *testing.T) {
	_, ok := Prepare("127.0.0.1")
	assert.False(t, ok)
}

func TestPrepareRejectsIPv6Literal(t *testing.T) {
	_, ok := Prepare("::1")
	assert.False(t, ok)
}
