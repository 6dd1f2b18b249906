package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"chat-relay/errors"
)

func TestTokenVerifier_Issue_And_Verify(t *testing.T) {
	req := require.New(t)
	verifier := NewTokenVerifier("a_long_enough_test_secret")
	userID := uuid.NewString()

	// When issuing a token
	token, err := verifier.Issue(userID, time.Hour)
	req.NoError(err)
	req.NotEmpty(token)

	// Then the token carries the same identity back
	claims, err := verifier.Verify(token)
	req.NoError(err)
	req.Equal(userID, claims.UserID)
}

func TestTokenVerifier_Rejects_Expired_Token(t *testing.T) {
	req := require.New(t)
	verifier := NewTokenVerifier("a_long_enough_test_secret")

	token, err := verifier.Issue(uuid.NewString(), -time.Minute)
	req.NoError(err)

	_, err = verifier.Verify(token)
	req.ErrorIs(err, errors.ErrInvalidToken)
}

func TestTokenVerifier_Rejects_Foreign_Secret(t *testing.T) {
	req := require.New(t)
	issuer := NewTokenVerifier("secret_one")
	verifier := NewTokenVerifier("secret_two")

	token, err := issuer.Issue(uuid.NewString(), time.Hour)
	req.NoError(err)

	_, err = verifier.Verify(token)
	req.ErrorIs(err, errors.ErrInvalidToken)
}

func TestTokenVerifier_Rejects_Garbage(t *testing.T) {
	req := require.New(t)
	verifier := NewTokenVerifier("a_long_enough_test_secret")

	_, err := verifier.Verify("not-a-jwt")
	req.ErrorIs(err, errors.ErrInvalidToken)
}
