package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPortMap(t *testing.T) {
	t.Parallel()

	// The classic lab wiring: clients from port 1, backends from port 5.
	m := PortMap{ClientPortBase: 1, BackendPortBase: 5}

	assert.Equal(t, uint16(1), m.ClientPort(0))
	assert.Equal(t, uint16(3), m.ClientPort(2))
	assert.Equal(t, uint16(5), m.BackendPort(0))
	assert.Equal(t, uint16(6), m.BackendPort(1))

	// A different topology only changes the bases, not the logic.
	shifted := PortMap{ClientPortBase: 10, BackendPortBase: 20}
	assert.Equal(t, uint16(12), shifted.ClientPort(2))
	assert.Equal(t, uint16(21), shifted.BackendPort(1))
}

func TestClassificationString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "client_to_virtual", ClassClientToVirtual.String())
	assert.Equal(t, "backend_to_client", ClassBackendToClient.String())
	assert.Equal(t, "irrelevant", ClassIrrelevant.String())
	assert.Equal(t, "unknown", Classification(42).String())
}

func TestActionConstructors(t *testing.T) {
	t.Parallel()

	out := OutputTo(5)
	assert.Equal(t, ActionOutput, out.Type)
	assert.Equal(t, uint16(5), out.Port)

	src := RewriteSource(nil)
	assert.Equal(t, ActionRewriteSource, src.Type)

	dst := RewriteDestination(nil)
	assert.Equal(t, ActionRewriteDestination, dst.Type)
}
