package acl

import (
	"context"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
# comment line, ignored
/users:
  192.168.1.0/24 / w
  192.168.1.0/24 /root n

/guests:
  10.0.0.5 /public r
`

func TestParseSharesAndRules(t *testing.T) {
	shares, err := Parser{}.Parse(strings.NewReader(sample))
	require.NoError(t, err)
	require.Len(t, shares, 2)

	assert.Equal(t, "/users", shares[0].Name)
	require.Len(t, shares[0].Rules, 2)
	assert.Equal(t, "/", shares[0].Rules[0].Path)
	assert.Equal(t, OpWrite, shares[0].Rules[0].Allow)
	assert.Equal(t, "/root", shares[0].Rules[1].Path)
	assert.Equal(t, OpNone, shares[0].Rules[1].Allow)

	assert.Equal(t, "/guests", shares[1].Name)
	require.Len(t, shares[1].Rules, 1)
}

func TestParseRejectsMalformedRule(t *testing.T) {
	_, err := Parser{}.Parse(strings.NewReader("/users:\n  bad rule\n"))
	assert.Error(t, err)
}

func TestFileEnforcerMoreSpecificPathWins(t *testing.T) {
	shares, err := Parser{}.Parse(strings.NewReader(sample))
	require.NoError(t, err)
	f := NewFileEnforcer(shares)

	peer := net.ParseIP("192.168.1.42")
	assert.True(t, f.Allow(context.Background(), "/users", peer, "/any/path", OpRead))
	assert.False(t, f.Allow(context.Background(), "/users", peer, "/root/secrets", OpRead))
}

func TestFileEnforcerDeniesOutsideNetblock(t *testing.T) {
	shares, err := Parser{}.Parse(strings.NewReader(sample))
	require.NoError(t, err)
	f := NewFileEnforcer(shares)

	outsider := net.ParseIP("8.8.8.8")
	assert.False(t, f.Allow(context.Background(), "/users", outsider, "/", OpRead))
}

func TestFileEnforcerDeniesUnknownShare(t *testing.T) {
	f := NewFileEnforcer(nil)
	assert.False(t, f.Allow(context.Background(), "/nope", net.ParseIP("127.0.0.1"), "/", OpRead))
}

func TestWriteImpliesRead(t *testing.T) {
	assert.True(t, OpWrite.Allows(OpRead))
	assert.True(t, OpWrite.Allows(OpWrite))
	assert.False(t, OpRead.Allows(OpWrite))
	assert.False(t, OpNone.Allows(OpRead))
}

func TestAllowAllPermitsEverything(t *testing.T) {
	var e Enforcer = AllowAll{}
	assert.True(t, e.Allow(context.Background(), "anything", nil, "/", OpWrite))
}
