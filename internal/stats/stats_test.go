package stats

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIncrementsAreReflectedInSnapshot(t *testing.T) {
	s := New()
	s.IncRequestsReceived()
	s.IncRequestsReceived()
	s.IncRequestsAnswered()
	s.IncRequestsRejected()
	s.IncErrors()
	s.IncPPSPulses()
	s.IncGPSSentencesParsed()
	s.IncNmeaChecksumErrors()
	s.IncNmeaParseErrors()

	snap := s.Snapshot()
	assert.Equal(t, uint64(2), snap.RequestsReceived)
	assert.Equal(t, uint64(1), snap.RequestsAnswered)
	assert.Equal(t, uint64(1), snap.RequestsRejected)
	assert.Equal(t, uint64(1), snap.Errors)
	assert.Equal(t, uint64(1), snap.PPSPulses)
	assert.Equal(t, uint64(1), snap.GPSSentencesParsed)
	assert.Equal(t, uint64(1), snap.NmeaChecksumErrors)
	assert.Equal(t, uint64(1), snap.NmeaParseErrors)
}

func TestSetClockInfoReflectedInSnapshot(t *testing.T) {
	s := New()
	s.SetClockInfo(1, [4]byte{'G', 'P', 'S', 0}, true, 8)

	snap := s.Snapshot()
	assert.Equal(t, uint8(1), snap.Stratum)
	assert.Equal(t, "GPS", snap.RefID)
	assert.True(t, snap.Connected)
	assert.Equal(t, uint8(8), snap.Satellites)
}

func TestConcurrentIncrementsAreSafe(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.IncRequestsReceived()
		}()
	}
	wg.Wait()
	assert.Equal(t, uint64(100), s.Snapshot().RequestsReceived)
}
