package common

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateUUID(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		expectError  bool
		expectedUUID uuid.UUID
	}{
		{
			name:         "Valid UUID",
			input:        "550e8400-e29b-41d4-a716-446655440000",
			expectError:  false,
			expectedUUID: uuid.MustParse("550e8400-e29b-41d4-a716-446655440000"),
		},
		{
			name:         "Valid UUID with whitespace trimmed",
			input:        " 550e8400-e29b-41d4-a716-446655440000 ",
			expectError:  false,
			expectedUUID: uuid.MustParse("550e8400-e29b-41d4-a716-446655440000"),
		},
		{
			name:        "Empty string",
			input:       "",
			expectError: true,
		},
		{
			name:        "Too short",
			input:       "550e8400-e29b-41d4-a716-44665544000",
			expectError: true,
		},
		{
			name:        "Hyphen misplaced",
			input:       "550e8400e29b-41d4-a716-4466554400000",
			expectError: true,
		},
		{
			name:        "Invalid character",
			input:       "550e8400-e29b-41d4-g716-446655440000",
			expectError: true,
		},
		{
			name:         "Uppercase accepted",
			input:        "550E8400-E29B-41D4-A716-446655440000",
			expectError:  false,
			expectedUUID: uuid.MustParse("550e8400-e29b-41d4-a716-446655440000"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := ValidateUUID(tt.input, "id")
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedUUID, id)
		})
	}
}

func TestValidateName(t *testing.T) {
	assert.NoError(t, ValidateName("Смартфоны", 200))
	assert.NoError(t, ValidateName(strings.Repeat("a", 200), 200))
	assert.Error(t, ValidateName(strings.Repeat("a", 201), 200))
	assert.Error(t, ValidateName("", 200))
	assert.Error(t, ValidateName("   ", 200))

	// the bound is code points, not bytes
	assert.NoError(t, ValidateName(strings.Repeat("я", 200), 200))
}
