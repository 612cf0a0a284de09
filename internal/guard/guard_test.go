package guard

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/rajivgeraev/barter-api/internal/apperrors"
)

func TestAuthorize(t *testing.T) {
	alice := uuid.New()
	bob := uuid.New()
	carol := uuid.New()

	aliceToBob := ForProposal(alice, bob)

	tests := []struct {
		name   string
		user   uuid.UUID
		action Action
		res    Resource
		want   error
	}{
		{"anonymous create ad", uuid.Nil, AdCreate, Resource{}, apperrors.ErrUnauthenticated},
		{"anonymous list own", uuid.Nil, AdListOwn, Resource{}, apperrors.ErrUnauthenticated},
		{"anonymous view proposal", uuid.Nil, ProposalView, aliceToBob, apperrors.ErrUnauthenticated},
		{"create ad", alice, AdCreate, Resource{}, nil},

		{"owner updates ad", alice, AdUpdate, ForAd(alice), nil},
		{"stranger updates ad", bob, AdUpdate, ForAd(alice), apperrors.ErrForbidden},
		{"owner deletes ad", alice, AdDelete, ForAd(alice), nil},
		{"stranger deletes ad", bob, AdDelete, ForAd(alice), apperrors.ErrForbidden},

		{"create proposal", alice, ProposalCreate, aliceToBob, nil},
		{"create with foreign sender ad", carol, ProposalCreate, aliceToBob, apperrors.ErrValidation},
		{"self exchange", alice, ProposalCreate, ForProposal(alice, alice), apperrors.ErrValidation},

		{"receiver accepts", bob, ProposalAccept, aliceToBob, nil},
		{"sender accepts", alice, ProposalAccept, aliceToBob, apperrors.ErrForbidden},
		{"receiver declines", bob, ProposalDecline, aliceToBob, nil},
		{"stranger declines", carol, ProposalDecline, aliceToBob, apperrors.ErrForbidden},

		{"sender updates", alice, ProposalUpdate, aliceToBob, nil},
		{"receiver updates", bob, ProposalUpdate, aliceToBob, apperrors.ErrForbidden},
		{"sender deletes", alice, ProposalDelete, aliceToBob, nil},
		{"receiver deletes", bob, ProposalDelete, aliceToBob, apperrors.ErrForbidden},

		{"sender views", alice, ProposalView, aliceToBob, nil},
		{"receiver views", bob, ProposalView, aliceToBob, nil},
		{"stranger views", carol, ProposalView, aliceToBob, apperrors.ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Authorize(tt.user, tt.action, tt.res)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestAuthorizeSelfExchangeNamesReceiverField(t *testing.T) {
	alice := uuid.New()

	err := Authorize(alice, ProposalCreate, ForProposal(alice, alice))

	var appErr *apperrors.Error
	if assert.True(t, errors.As(err, &appErr)) {
		assert.Contains(t, appErr.Fields, "ad_receiver_id")
	}
}

func TestAuthenticated(t *testing.T) {
	assert.ErrorIs(t, Authenticated(uuid.Nil), apperrors.ErrUnauthenticated)
	assert.NoError(t, Authenticated(uuid.New()))
}
