package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/action-ledger/internal/models"
)

type takenIDs map[string]bool

func (t takenIDs) Exists(ctx context.Context, id string) (bool, error) {
	return t[id], nil
}

type failingChecker struct{}

func (failingChecker) Exists(ctx context.Context, id string) (bool, error) {
	return false, errors.New("store offline")
}

func TestIDGeneratorUsesTypePrefix(t *testing.T) {
	gen := NewIDGenerator(takenIDs{})
	for _, actionType := range models.ActionTypes {
		id, err := gen.Next(context.Background(), actionType)
		require.NoError(t, err)
		require.Regexp(t, actionIDFormat, id)
		require.Equal(t, actionIDPrefixes[actionType], id[:1])
	}

	_, err := gen.Next(context.Background(), models.ActionType("kick"))
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestIDGeneratorRetriesOnCollision(t *testing.T) {
	calls := 0
	gen := &randomIDGenerator{
		store: takenIDs{"B111-1111": true},
		rand: func(n int) (int, error) {
			calls++
			if calls <= 7 {
				return 0, nil
			}
			return 1, nil
		},
	}

	id, err := gen.Next(context.Background(), models.ActionTypeBan)
	require.NoError(t, err)
	require.Equal(t, "B222-2222", id)
}

func TestIDGeneratorGivesUpWhenExhausted(t *testing.T) {
	gen := &randomIDGenerator{
		store: takenIDs{"W111-1111": true},
		rand:  func(n int) (int, error) { return 0, nil },
	}
	_, err := gen.Next(context.Background(), models.ActionTypeWagerBlacklist)
	require.ErrorIs(t, err, ErrIDSpaceExhausted)

	_, err = NewIDGenerator(failingChecker{}).Next(context.Background(), models.ActionTypeWarn)
	require.Error(t, err)
}
