package directory

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEntryFirst(t *testing.T) {
	entry := Entry{
		"mail": {"jane@example.com", "jane@corp.example.com"},
		"name": {},
	}

	assert.Equal(t, "jane@example.com", entry.First("mail"))
	assert.Empty(t, entry.First("name"))
	assert.Empty(t, entry.First("missing"))
}

func TestProtocolErrorUnwrap(t *testing.T) {
	inner := errors.New("connection refused")
	err := &ProtocolError{Op: "dial", Err: inner}

	assert.Equal(t, "ldap dial: connection refused", err.Error())
	assert.ErrorIs(t, err, inner)

	var protoErr *ProtocolError
	assert.ErrorAs(t, error(err), &protoErr)
}
