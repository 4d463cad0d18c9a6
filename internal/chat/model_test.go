package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestNormalizeContent(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{name: "plain", input: "hello", want: "hello"},
		{name: "surrounding whitespace", input: "  hello \n", want: "hello"},
		{name: "inner whitespace kept", input: " a  b ", want: "a  b"},
		{name: "empty", input: "", wantErr: ErrInvalidMessage},
		{name: "whitespace only", input: "   ", wantErr: ErrInvalidMessage},
		{name: "tabs and newlines", input: "\t\n", wantErr: ErrInvalidMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeContent(tt.input)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRoomInput_Validate(t *testing.T) {
	t.Run("trims name", func(t *testing.T) {
		in, err := RoomInput{Name: "  general  "}.Validate()
		require.NoError(t, err)
		assert.Equal(t, "general", in.Name)
		assert.Nil(t, in.Description)
		assert.Nil(t, in.ProfilePic)
	})

	t.Run("keeps optional fields", func(t *testing.T) {
		in, err := RoomInput{
			Name:        "general",
			Description: strPtr("talk about anything"),
			ProfilePic:  strPtr("https://example.com/a.png"),
		}.Validate()
		require.NoError(t, err)
		require.NotNil(t, in.Description)
		assert.Equal(t, "talk about anything", *in.Description)
		require.NotNil(t, in.ProfilePic)
	})

	t.Run("blank name", func(t *testing.T) {
		_, err := RoomInput{Name: "   "}.Validate()
		assert.ErrorIs(t, err, ErrInvalidRoomName)
	})

	t.Run("blank description", func(t *testing.T) {
		_, err := RoomInput{Name: "general", Description: strPtr(" ")}.Validate()
		assert.ErrorIs(t, err, ErrDescriptionEmpty)
	})

	t.Run("blank profile pic", func(t *testing.T) {
		_, err := RoomInput{Name: "general", ProfilePic: strPtr("")}.Validate()
		assert.ErrorIs(t, err, ErrInvalidProfilePic)
	})
}

func TestIsValidation(t *testing.T) {
	assert.True(t, IsValidation(ErrInvalidMessage))
	assert.True(t, IsValidation(ErrDescriptionEmpty))
	assert.False(t, IsValidation(ErrRoomNotFound))
	assert.False(t, IsValidation(nil))
}
