package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/noah-isme/action-ledger/internal/models"
)

const (
	actionIDAlphabet   = "123456789ABCDEFGHJKLMNPQRSTUVWXYZ"
	actionIDMaxRetries = 16
)

// ErrIDSpaceExhausted indicates no unused action id could be generated.
var ErrIDSpaceExhausted = errors.New("could not generate a unique action id")

var actionIDPrefixes = map[models.ActionType]string{
	models.ActionTypeBan:            "B",
	models.ActionTypeWarn:           "A",
	models.ActionTypeMute:           "M",
	models.ActionTypeWagerBlacklist: "W",
	models.ActionTypePcCheck:        "P",
	models.ActionTypeTarget:         "T",
	models.ActionTypeSummon:         "S",
}

// IDGenerator hands out action ids that are unused in the store.
type IDGenerator interface {
	Next(ctx context.Context, t models.ActionType) (string, error)
}

// ExistenceChecker reports whether an id is already taken.
type ExistenceChecker interface {
	Exists(ctx context.Context, id string) (bool, error)
}

type randomIDGenerator struct {
	store ExistenceChecker
	rand  func(n int) (int, error)
}

// NewIDGenerator returns a generator producing ids like "B7KX-9QAT".
func NewIDGenerator(store ExistenceChecker) IDGenerator {
	return &randomIDGenerator{store: store, rand: cryptoIntn}
}

func (g *randomIDGenerator) Next(ctx context.Context, t models.ActionType) (string, error) {
	prefix, ok := actionIDPrefixes[t]
	if !ok {
		return "", invalidArgument("unknown action type %q", t)
	}

	for attempt := 0; attempt < actionIDMaxRetries; attempt++ {
		id, err := g.candidate(prefix)
		if err != nil {
			return "", err
		}
		taken, err := g.store.Exists(ctx, id)
		if err != nil {
			return "", fmt.Errorf("check action id: %w", err)
		}
		if !taken {
			return id, nil
		}
	}

	return "", ErrIDSpaceExhausted
}

func (g *randomIDGenerator) candidate(prefix string) (string, error) {
	buf := make([]byte, 0, 9)
	buf = append(buf, prefix...)
	for i := 0; i < 7; i++ {
		if i == 3 {
			buf = append(buf, '-')
		}
		n, err := g.rand(len(actionIDAlphabet))
		if err != nil {
			return "", err
		}
		buf = append(buf, actionIDAlphabet[n])
	}
	return string(buf), nil
}

func cryptoIntn(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}
