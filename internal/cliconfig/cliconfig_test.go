package cliconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRunDefaults(t *testing.T) {
	cfg, dc, err := Parse(nil)
	require.NoError(t, err)
	require.Nil(t, dc)
	require.NotNil(t, cfg)

	assert.Equal(t, "127.0.0.1", cfg.ListenHost)
	assert.Equal(t, uint16(5151), cfg.ListenPort)
	assert.Equal(t, uint32(7200), cfg.CacheMaxAge)
	assert.True(t, cfg.ClearHTML)
	assert.True(t, cfg.Fast304)
	assert.True(t, cfg.SkipAuxResources)
	assert.InDelta(t, 0.5, cfg.ImageScale, 0.0001)
	assert.Equal(t, uint32(96), cfg.ImageScaleMin)
	assert.Equal(t, uint32(384), cfg.ImageScaleMax)
	assert.Equal(t, uint64(1360), cfg.RechunkHTMLSize)
	assert.Equal(t, uint64(5*1024*1024), cfg.TransformLimit)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Nil(t, cfg.ExtraStripQueryParams)
	assert.Empty(t, cfg.MetricsListen)
}

func TestParseRunStripQueryParams(t *testing.T) {
	cfg, _, err := Parse([]string{"--strip-query-params", "mc_*, ref , ,igshid"})
	require.NoError(t, err)
	assert.Equal(t, []string{"mc_*", "ref", "igshid"}, cfg.ExtraStripQueryParams)
}

func TestParseRunMetricsListen(t *testing.T) {
	cfg, _, err := Parse([]string{"--metrics-listen", " 127.0.0.1:9090 "})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9090", cfg.MetricsListen)
}

func TestParseRunOverridesFlags(t *testing.T) {
	cfg, _, err := Parse([]string{
		"--listen", "0.0.0.0:8080",
		"--html-clean=false",
		"--image-scale-limit", "10..20",
		"--transform-limit", "2m",
	})
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", cfg.ListenHost)
	assert.Equal(t, uint16(8080), cfg.ListenPort)
	assert.False(t, cfg.ClearHTML)
	assert.Equal(t, uint32(10), cfg.ImageScaleMin)
	assert.Equal(t, uint32(20), cfg.ImageScaleMax)
	assert.Equal(t, uint64(2*1024*1024), cfg.TransformLimit)
}

func TestParseDacgenSubcommand(t *testing.T) {
	_, dc, err := Parse([]string{"dacgen", "--dump", "trace.txt", "list-a.txt", "list-b.txt"})
	require.NoError(t, err)
	require.NotNil(t, dc)
	assert.Equal(t, "trace.txt", dc.Dump)
	assert.Equal(t, []string{"list-a.txt", "list-b.txt"}, dc.Inputs)
	assert.Equal(t, "blocklist.dac", dc.DACOut)
}

func TestParseListenAddressDefaultsPort(t *testing.T) {
	host, port, err := parseListenAddress("example.internal")
	require.NoError(t, err)
	assert.Equal(t, "example.internal", host)
	assert.Equal(t, uint16(5151), port)
}

func TestParseListenAddressStripsScheme(t *testing.T) {
	host, port, err := parseListenAddress("http://0.0.0.0:9000")
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", host)
	assert.Equal(t, uint16(9000), port)
}

func TestParseRangeDefaultsOpenEnds(t *testing.T) {
	min, max, err := parseRange("..384")
	require.NoError(t, err)
	assert.Equal(t, uint32(1), min)
	assert.Equal(t, uint32(384), max)
}

func TestParseRangeRejectsInverted(t *testing.T) {
	_, _, err := parseRange("100..10")
	assert.Error(t, err)
}

func TestParseSizeUnits(t *testing.T) {
	cases := map[string]uint64{
		"1360": 1360,
		"5m":   5 * 1024 * 1024,
		"2k":   2 * 1024,
		"1g":   1024 * 1024 * 1024,
	}
	for in, want := range cases {
		got, err := parseSize(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
}

func TestParseSizeRejectsUnknownUnit(t *testing.T) {
	_, err := parseSize("5x")
	assert.Error(t, err)
}

func TestParseDurationRejectsNegative(t *testing.T) {
	_, err := parseDuration("-5m")
	assert.Error(t, err)
}
