package cache

import (
	"testing"
	"time"

	"phonebook/internal/domain/entity"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleUser() *entity.User {
	refresh := "refresh.token.value"
	avatar := "https://www.gravatar.com/avatar/abc"

	return &entity.User{
		ID:           uuid.New(),
		Email:        "alice@example.com",
		Name:         "alice01",
		PasswordHash: "$2a$10$abcdefghijklmnopqrstuv",
		Role:         entity.RoleModerator,
		Confirmed:    true,
		RefreshToken: &refresh,
		AvatarURL:    &avatar,
		CreatedAt:    time.Date(2024, 1, 2, 3, 4, 5, 6, time.UTC),
		UpdatedAt:    time.Date(2024, 2, 3, 4, 5, 6, 7, time.UTC),
	}
}

func TestSnapshot_RoundTrip(t *testing.T) {
	user := sampleUser()

	data, err := EncodeUser(user)
	require.NoError(t, err)
	assert.Equal(t, byte(snapshotVersionCurrent), data[0])

	decoded, err := DecodeUser(data)
	require.NoError(t, err)
	assert.Equal(t, user, decoded)
}

func TestSnapshot_OptionalFieldsAbsent(t *testing.T) {
	user := sampleUser()
	user.RefreshToken = nil
	user.AvatarURL = nil
	user.Confirmed = false

	data, err := EncodeUser(user)
	require.NoError(t, err)

	decoded, err := DecodeUser(data)
	require.NoError(t, err)
	assert.Nil(t, decoded.RefreshToken)
	assert.Nil(t, decoded.AvatarURL)
	assert.False(t, decoded.Confirmed)
}

func TestSnapshot_EmptyRefreshTokenIsPreserved(t *testing.T) {
	user := sampleUser()
	empty := ""
	user.RefreshToken = &empty

	data, err := EncodeUser(user)
	require.NoError(t, err)

	decoded, err := DecodeUser(data)
	require.NoError(t, err)
	require.NotNil(t, decoded.RefreshToken)
	assert.Empty(t, *decoded.RefreshToken)
}

func TestSnapshot_ZeroTimestampsRoundTrip(t *testing.T) {
	user := sampleUser()
	user.CreatedAt = time.Time{}
	user.UpdatedAt = time.Time{}

	data, err := EncodeUser(user)
	require.NoError(t, err)

	decoded, err := DecodeUser(data)
	require.NoError(t, err)
	assert.True(t, decoded.CreatedAt.IsZero())
	assert.True(t, decoded.UpdatedAt.IsZero())
	assert.Equal(t, user, decoded)
}

func TestSnapshot_PreviousVersionIsRejected(t *testing.T) {
	data, err := EncodeUser(sampleUser())
	require.NoError(t, err)

	data[0] = 1
	_, err = DecodeUser(data)
	assert.ErrorIs(t, err, ErrUnknownSnapshotVersion)
}

func TestSnapshot_UnknownVersion(t *testing.T) {
	data, err := EncodeUser(sampleUser())
	require.NoError(t, err)

	data[0] = 99
	_, err = DecodeUser(data)
	assert.ErrorIs(t, err, ErrUnknownSnapshotVersion)
}

func TestSnapshot_Corrupt(t *testing.T) {
	data, err := EncodeUser(sampleUser())
	require.NoError(t, err)

	tests := map[string][]byte{
		"empty":     {},
		"truncated": data[:len(data)-3],
		"trailing":  append(append([]byte(nil), data...), 0x01),
		"id only":   data[:17],
	}

	for name, payload := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeUser(payload)
			assert.Error(t, err)
		})
	}
}
