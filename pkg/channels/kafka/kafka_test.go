package kafka

import (
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateChannelRequiresBrokers(t *testing.T) {
	pub, sub, err := CreateChannel(watermill.NopLogger{}, "tideflow-engine", nil)
	require.Error(t, err)

	assert.Nil(t, pub)
	assert.Nil(t, sub)
}
