package db

import (
	"context"
	"testing"

	"github.com/gocql/gocql"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseConsistency(t *testing.T) {
	assert.Equal(t, gocql.One, ParseConsistency("one"))
	assert.Equal(t, gocql.LocalQuorum, ParseConsistency(" LOCAL_QUORUM "))
	assert.Equal(t, gocql.Quorum, ParseConsistency(""))
	assert.Equal(t, gocql.Quorum, ParseConsistency("bogus"))
}

func TestConnectRequiresHosts(t *testing.T) {
	_, err := Connect(context.Background(), ClusterConfig{Keyspace: "drumkits"}, zerolog.Nop())
	assert.Error(t, err)
}
