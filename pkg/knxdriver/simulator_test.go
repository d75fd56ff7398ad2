package knxdriver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulatorSendRecordsCall(t *testing.T) {
	s := NewSimulator(4)
	require.NoError(t, s.Send("1/1/1", "1.001", "1"))
	sent := s.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "1/1/1", sent[0].Address)
	assert.Equal(t, "1", sent[0].Wire)
}

func TestSimulatorInjectDeliversOnInboundChannel(t *testing.T) {
	s := NewSimulator(4)
	s.Inject(Inbound{Address: "1/1/2", DPT: "1.001", Wire: "0"})
	tg := <-s.Inbound()
	assert.Equal(t, "1/1/2", tg.Address)
}

func TestSimulatorSendAfterCloseFails(t *testing.T) {
	s := NewSimulator(4)
	require.NoError(t, s.Close())
	err := s.Send("1/1/1", "1.001", "1")
	assert.Error(t, err)
}
