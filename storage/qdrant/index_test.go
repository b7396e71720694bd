package qdrant

import (
	"testing"

	"github.com/poiesic/minutes/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want Endpoint
	}{
		{"http port mapped to grpc", "http://localhost:6333", Endpoint{Host: "localhost", Port: 6334}},
		{"https enables tls", "https://vectors.example.com:6333", Endpoint{Host: "vectors.example.com", Port: 6334, UseTLS: true}},
		{"grpc port used as given", "grpc://qdrant:7000", Endpoint{Host: "qdrant", Port: 7000}},
		{"default port", "http://qdrant", Endpoint{Host: "qdrant", Port: 6334}},
		{"empty host", "http://:6333", Endpoint{Host: "localhost", Port: 6334}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseURL(tt.url)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseURL("http://host:notaport")
	assert.Error(t, err)
}

func TestOpen_RequiresCollection(t *testing.T) {
	_, err := Open("http://localhost:6333", "")
	assert.Error(t, err)
}

func TestPointIDs(t *testing.T) {
	ids := []core.ID{1, core.ID(^uint64(0))}
	points := pointIDs(ids)
	require.Len(t, points, 2)
	assert.Equal(t, uint64(1), points[0].GetNum())
	assert.Equal(t, ^uint64(0), points[1].GetNum())
}
