package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load(nil)
	require.NoError(t, err)
	require.True(t, c.UseHTTPS)
	require.Equal(t, 443, c.HTTPPort)
	require.Nil(t, c.ICEServers)
}

func TestLoadParsesFlags(t *testing.T) {
	c, err := Load([]string{
		"-http-host", "entrance.example.com",
		"-use-https=false",
		"-max-connections", "1000",
		"-ice-servers", "stun:a.example.com,stun:b.example.com",
	})
	require.NoError(t, err)
	require.Equal(t, "entrance.example.com", c.HTTPHost)
	require.False(t, c.UseHTTPS)
	require.Equal(t, 1000, c.MaxConnections)
	require.Equal(t, []string{"stun:a.example.com", "stun:b.example.com"}, c.ICEServers)
}

func TestLoadRejectsUnknownFlag(t *testing.T) {
	_, err := Load([]string{"-not-a-real-flag"})
	require.Error(t, err)
}
