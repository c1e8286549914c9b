package valkey

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKey_UsesNormalizedPrefix(t *testing.T) {
	c := &Client{keyPrefix: normalizePrefix("azcrm")}
	assert.Equal(t, "azcrm:instance_tenant:crm-demo", c.Key("instance_tenant", "crm-demo"))
	assert.Equal(t, "azcrm", c.Key())

	bare := &Client{keyPrefix: normalizePrefix("")}
	assert.Equal(t, "lock:x", bare.Key("lock", "x"))
}
