package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUserView_WithoutAccount(t *testing.T) {
	u := &User{
		ID:            "u-1",
		Email:         "a@x.com",
		Name:          "Alice",
		Avatar:        "https://example.com/a.png",
		EmailVerified: true,
	}

	v := u.View(nil)

	assert.Equal(t, "a@x.com", v.Email)
	assert.Empty(t, v.Username)
	assert.Empty(t, v.DOB)
}

func TestUserView_MergesAccountFields(t *testing.T) {
	u := &User{ID: "u-1", Email: "a@x.com", Name: "Alice"}
	acc := &Account{
		Email:    "a@x.com",
		Username: "alice",
		DOB:      time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	v := u.View(acc)

	assert.Equal(t, "alice", v.Username)
	assert.Equal(t, "2000-01-01", v.DOB)
}
