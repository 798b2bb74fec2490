// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommonPasswordsLoaded(t *testing.T) {
	assert.NotEmpty(t, commonPasswords)
	assert.True(t, isCommonPassword("password"))
	assert.True(t, isCommonPassword("PASSWORD"))
	assert.False(t, isCommonPassword("secret1"))
}

func TestValidate(t *testing.T) {
	v := DefaultPasswordValidator()

	tests := []struct {
		name     string
		password string
		codes    []string
	}{
		{"valid", "secret1", nil},
		{"exactly min length", "abcxyz", nil},
		{"too short", "abc", []string{"min_length"}},
		{"multibyte counts runes", "ñandúé", nil},
		{"too long", strings.Repeat("a", 73), []string{"max_length"}},
		{"max bytes", strings.Repeat("a", 72), nil},
		{"common", "qwerty", []string{"common_password"}},
		{"short and common", "12345", []string{"min_length", "common_password"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.password)
			if tt.codes == nil {
				assert.NoError(t, err)
				return
			}

			var pve *PasswordValidationError
			require.True(t, errors.As(err, &pve))
			codes := make([]string, len(pve.Errors))
			for i, e := range pve.Errors {
				codes[i] = e.Code
			}
			assert.Equal(t, tt.codes, codes)
			assert.ErrorIs(t, err, ErrWeakPassword)
		})
	}
}

func TestValidate_CommonCheckDisabled(t *testing.T) {
	v := DefaultPasswordValidator()
	v.CheckCommonPasswords = false

	assert.NoError(t, v.Validate("password"))
}

func TestPasswordValidationError(t *testing.T) {
	err := &PasswordValidationError{Errors: []ValidationError{
		{Code: "a", Message: "first"},
		{Code: "b", Message: "second"},
	}}

	assert.Equal(t, "first", err.Error())
	assert.Equal(t, []string{"first", "second"}, err.Messages())
	assert.Equal(t, "password validation failed", (&PasswordValidationError{}).Error())
}
