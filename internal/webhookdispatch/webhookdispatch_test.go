package webhookdispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignVerify_RoundTrip(t *testing.T) {
	sig := Sign("shh", "1700000000", []byte(`{"a":1}`))
	assert.True(t, Verify("shh", "1700000000", []byte(`{"a":1}`), sig))
}

func TestVerify_RejectsTamperedBody(t *testing.T) {
	sig := Sign("shh", "1700000000", []byte(`{"a":1}`))
	assert.False(t, Verify("shh", "1700000000", []byte(`{"a":2}`), sig))
}

func TestVerify_RejectsWrongSecret(t *testing.T) {
	sig := Sign("shh", "1700000000", []byte(`{"a":1}`))
	assert.False(t, Verify("other", "1700000000", []byte(`{"a":1}`), sig))
}
