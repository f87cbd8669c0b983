package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMinimalBootstrap(t *testing.T) {
	cfg, err := Parse([]string{"--hashpath=/tmp/m", "--nickname=alpha", "--secretkey=s3cret", "--bootstrap"})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/m", cfg.Hashpath)
	assert.Equal(t, "alpha", cfg.Nickname)
	assert.True(t, cfg.Bootstrap)
	assert.Equal(t, DefaultFlarePort, cfg.Port)
}

func TestParseMissingRequiredFlags(t *testing.T) {
	_, err := Parse([]string{"--bootstrap"})
	assert.Error(t, err)
}

func TestParseRejectsBootstrapAndBootserverTogether(t *testing.T) {
	_, err := Parse([]string{
		"--hashpath=/tmp/m", "--nickname=alpha", "--secretkey=s3cret",
		"--bootstrap", "--bootserver=10.0.0.1:12000",
	})
	assert.Error(t, err)
}

func TestParseRequiresOneOfBootstrapOrBootserver(t *testing.T) {
	_, err := Parse([]string{"--hashpath=/tmp/m", "--nickname=alpha", "--secretkey=s3cret"})
	assert.Error(t, err)
}

func TestParseSplitsDebugMask(t *testing.T) {
	cfg, err := Parse([]string{
		"--hashpath=/tmp/m", "--nickname=alpha", "--secretkey=s3cret",
		"--bootstrap", "--debug=io,membership",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"io", "membership"}, cfg.Debug)
}

func TestParseJoinWithBootserver(t *testing.T) {
	cfg, err := Parse([]string{
		"--hashpath=/tmp/m", "--nickname=beta", "--secretkey=s3cret",
		"--bootserver=10.0.0.1:12000", "--port=13000",
	})
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1:12000", cfg.BootServer)
	assert.Equal(t, uint16(13000), cfg.Port)
}
