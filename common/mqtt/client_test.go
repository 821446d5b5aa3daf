package mqtt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUsesTLS(t *testing.T) {
	assert.True(t, usesTLS("ssl://broker.hivemq.cloud:8883"))
	assert.True(t, usesTLS("mqtts://broker:8883"))
	assert.True(t, usesTLS("tls://broker:8883"))
	assert.False(t, usesTLS("tcp://localhost:1883"))
	assert.False(t, usesTLS("mqtt://localhost:1883"))
}
