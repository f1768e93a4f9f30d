package mailer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestIsValidEmail(t *testing.T) {
	valid := []string{
		"sam@example.com",
		"first.last@sub.domain.org",
		"user+tag@example.co",
	}
	for _, v := range valid {
		assert.True(t, IsValidEmail(v), v)
	}

	invalid := []string{
		"",
		"plainaddress",
		"@missing-local.com",
		"missing-at.example.com",
		"spaces in@example.com",
		"trailing@dot.",
	}
	for _, v := range invalid {
		assert.False(t, IsValidEmail(v), v)
	}
}

func TestDisabledMailerIsNoop(t *testing.T) {
	m := &Mailer{logger: zap.NewNop().Sugar()}
	assert.NoError(t, m.SendContactEmail("Sam", "sam@example.com", "hello"))
}
