package telegram

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsAdmin(t *testing.T) {
	allowlist := "formality8765,ops_second"

	assert.True(t, isAdmin(allowlist, "formality8765"))
	assert.True(t, isAdmin(allowlist, "ops_second"))

	assert.False(t, isAdmin(allowlist, "random_user"))
	// no partial matches against list entries
	assert.False(t, isAdmin(allowlist, "formality"))
	assert.False(t, isAdmin(allowlist, ""))
}

func TestEscapeMessage(t *testing.T) {
	assert.Equal(t, "silk\\_blouse \\*new\\*", EscapeMessage("silk_blouse *new*"))
}
