package mongo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestURI(t *testing.T) {
	assert.Equal(t, "mongodb://localhost:27017", uri("localhost:27017"))
	assert.Equal(t, "mongodb://db:27017", uri("mongodb://db:27017"))
	assert.Equal(t, "mongodb+srv://cluster.example.net", uri("mongodb+srv://cluster.example.net"))
}
