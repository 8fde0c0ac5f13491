package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchWallet_PartialFailureIsNil(t *testing.T) {
	acct := &fakeAccount{authed: true, charWallet: 745390.129, corpWalletErr: errors.New("403 forbidden")}
	s, err := FetchWallet(context.Background(), acct, testNow)
	require.NoError(t, err)
	require.NotNil(t, s.CharacterWallet)
	assert.Equal(t, 745390.13, *s.CharacterWallet)
	assert.Nil(t, s.CorporationWallet)
	require.Len(t, s.Errors, 1)
	assert.Contains(t, s.Errors[0], "corporation wallet")
	assert.Equal(t, testNow, s.LastUpdated)
}

func TestFetchWallet_Unauthenticated(t *testing.T) {
	s, err := FetchWallet(context.Background(), &fakeAccount{}, testNow)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Nil(t, s.CharacterWallet)
	assert.Nil(t, s.CorporationWallet)
}
