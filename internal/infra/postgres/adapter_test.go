package postgres

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"overwatch/internal/domain/model"
)

func TestValidateIdent(t *testing.T) {
	for _, name := range []string{"ow_blog_acme", "a", "_private", "db2"} {
		assert.NoError(t, validateIdent(name), name)
	}
	for _, name := range []string{
		"",
		"2start",
		"has-hyphen",
		"Caps",
		"drop table; --",
		strings.Repeat("a", 64),
	} {
		assert.ErrorIs(t, validateIdent(name), model.ErrValidation, name)
	}
}
