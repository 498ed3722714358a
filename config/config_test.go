package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	s, err := Load(viper.New())
	require.NoError(t, err)
	assert.Equal(t, 8080, s.Port)
	assert.Equal(t, GraphMemory, s.GraphMode)
	assert.Equal(t, NullPolicyStore, s.PatchNull)
	assert.True(t, s.GraphEnabled())
	assert.False(t, s.Indexed())
}

func TestLoadOverridesFromFlags(t *testing.T) {
	v := viper.New()
	v.Set("port", 9000)
	v.Set("rserv_graph", "indexed")

	s, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, 9000, s.Port)
	assert.True(t, s.Indexed())
}

func TestValidateAccumulatesErrors(t *testing.T) {
	s := Settings{
		Port:            0,
		PatchNull:       "bogus",
		GraphMode:       "bogus",
		CycleDetection:  "bogus",
		DefaultPageSize: 0,
		MaxQueryDepth:   0,
		QueryWorkers:    0,
	}
	v := s.Validate()
	assert.False(t, v.IsValid())
	assert.GreaterOrEqual(t, len(v.Errors()), 6)
	assert.Error(t, v.Validate())
}

func TestValidateAcceptsDefaults(t *testing.T) {
	v := Defaults().Validate()
	assert.True(t, v.IsValid())
	assert.NoError(t, v.Validate())
}

func TestGraphDisabled(t *testing.T) {
	s := Defaults()
	s.GraphMode = GraphDisabled
	assert.False(t, s.GraphEnabled())
	assert.False(t, s.Indexed())
}
