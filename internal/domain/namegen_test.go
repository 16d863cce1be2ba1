package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRunID_Prefix(t *testing.T) {
	id := NewRunID("committer")
	assert.True(t, strings.HasPrefix(id, "committer-"), "expected ID to start with agent name prefix, got %s", id)
}

func TestNewRunID_FourParts(t *testing.T) {
	id := NewRunID("typo")
	parts := strings.Split(id, "-")
	require.Len(t, parts, 4, "expected exactly 4 hyphen-separated parts, got %d in %s", len(parts), id)
}

func TestNewRunID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		seen[NewRunID("test")] = true
	}
	assert.Len(t, seen, 50, "expected the suffix to make every ID distinct")
}
