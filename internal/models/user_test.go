package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasAccountControlFlag(t *testing.T) {
	user := &User{LdapAccountControl: AccountControlNormalAccount | AccountControlAccountDisabled}

	assert.True(t, user.HasAccountControlFlag(AccountControlNormalAccount))
	assert.True(t, user.HasAccountControlFlag(AccountControlAccountDisabled))
	assert.False(t, user.HasAccountControlFlag(AccountControlLockout))
}

func TestAccountControlFlags(t *testing.T) {
	user := &User{LdapAccountControl: AccountControlNormalAccount | AccountControlDontExpirePassword}

	flags := user.AccountControlFlags()
	assert.Equal(t, []string{"normal_account", "dont_expire_password"}, flags)

	assert.Empty(t, (&User{}).AccountControlFlags())
}

func TestNormalizeUsername(t *testing.T) {
	assert.Equal(t, "jane", NormalizeUsername("CORP\\jane"))
	assert.Equal(t, "jane", NormalizeUsername("jane"))
	assert.Equal(t, "jane", NormalizeUsername("JANE"))
}
