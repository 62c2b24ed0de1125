package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateRequestID(t *testing.T) {
	id1 := GenerateRequestID()
	id2 := GenerateRequestID()

	assert.NotEmpty(t, id1)
	assert.NotEqual(t, id1, id2)

	// 14 timestamp + 1 dash + 8 random
	assert.Len(t, id1, 23)
	assert.Len(t, id2, 23)
}

func TestRandomString(t *testing.T) {
	for _, length := range []int{1, 8, 32, 50} {
		result := RandomString(length)
		assert.Len(t, result, length)

		for _, char := range result {
			assert.Contains(t, "0123456789abcdef", string(char))
		}
	}
}

func TestRequestIDOrNew(t *testing.T) {
	assert.Equal(t, "req-1", RequestIDOrNew("req-1"))
	assert.Len(t, RequestIDOrNew(""), 23)
}
