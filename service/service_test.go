package service

import (
	"os"
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onestraw/hrwlb/balancer"
	"github.com/onestraw/hrwlb/config"
)

const yamlConfig = `
log:
  level: debug
  format: json
controller:
  address: 127.0.0.1:0
  auth:
    username: admin
    password: admin
virtual_server:
  - name: web
    address: 127.0.0.1:0
    hash: blake3
    hash_key: path
    pool:
      - address: 127.0.0.1:10001
      - address: 127.0.0.1:10002
`

func TestSetupLogging(t *testing.T) {
	defer log.SetLevel(log.InfoLevel)
	defer log.SetFormatter(&log.TextFormatter{})

	require.NoError(t, SetupLogging(&config.Log{Level: "warn", Format: "json"}))
	assert.Equal(t, log.WarnLevel, log.GetLevel())
	assert.IsType(t, &log.JSONFormatter{}, log.StandardLogger().Formatter)

	require.NoError(t, SetupLogging(&config.Log{}))
	assert.Equal(t, log.WarnLevel, log.GetLevel())
	assert.IsType(t, &log.TextFormatter{}, log.StandardLogger().Formatter)

	assert.Error(t, SetupLogging(&config.Log{Level: "loud"}))
}

func TestService(t *testing.T) {
	defer log.SetLevel(log.InfoLevel)
	defer log.SetFormatter(&log.TextFormatter{})

	file := filepath.Join(t.TempDir(), "hrwlb.yaml")
	require.NoError(t, os.WriteFile(file, []byte(yamlConfig), 0644))

	s, err := New(file)
	require.NoError(t, err)
	require.NotNil(t, s.controller)
	require.Len(t, s.balancer.VServers, 1)

	vs := s.balancer.VServers[0]
	assert.Equal(t, "blake3", vs.Hash)
	assert.Equal(t, 2, vs.Pool.Size())

	require.NoError(t, s.Start())
	assert.Equal(t, balancer.STATUS_RUNNING, vs.Status())
	require.NoError(t, s.Shutdown())
	assert.Equal(t, balancer.STATUS_STOPPED, vs.Status())
}

func TestNewFail(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	c, err := config.LoadFromString(`{"log":{"level":"loud"}}`)
	require.NoError(t, err)
	_, err = NewFromConfig(c)
	assert.Error(t, err)

	c, err = config.LoadFromString(`{"virtual_server":[{"name":"web","address":":80","hash_key":"cookie:"}]}`)
	require.NoError(t, err)
	_, err = NewFromConfig(c)
	assert.ErrorIs(t, err, balancer.ErrInvalidHashKey)
}
