package gpsreader

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDelaySchedule(t *testing.T) {
	assert.Equal(t, 5*time.Second, backoffDelay(0))
	assert.Equal(t, 10*time.Second, backoffDelay(1))
	assert.Equal(t, 20*time.Second, backoffDelay(2))
	assert.Equal(t, 40*time.Second, backoffDelay(3))
}

func TestBackoffDelayCaps(t *testing.T) {
	assert.Equal(t, backoffCap, backoffDelay(10))
	assert.Equal(t, backoffCap, backoffDelay(100))
}
