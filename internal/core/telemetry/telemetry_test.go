package telemetry

import (
	"context"
	"testing"

	"github.com/aevon-lab/reprocessor/internal/core/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_DisabledWithoutEndpoint(t *testing.T) {
	tel, err := Setup(context.Background(), config.TelemetryConfig{ServiceName: "reprocessor"})
	require.NoError(t, err)
	assert.Nil(t, tel)
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestParseHeaders(t *testing.T) {
	assert.Equal(t, map[string]string{}, parseHeaders(""))
	assert.Equal(t, map[string]string{"authorization": "Bearer x", "team": "core"},
		parseHeaders("authorization=Bearer x, team = core,broken"))
}
