package service

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/noah-isme/action-ledger/internal/dto"
	"github.com/noah-isme/action-ledger/internal/models"
	"github.com/noah-isme/action-ledger/internal/repository"
	"github.com/noah-isme/action-ledger/internal/utils"
)

var (
	// ErrSyncDisabled indicates roster sync is turned off by configuration.
	ErrSyncDisabled = errors.New("player sync is disabled")
	// ErrSyncUnauthorized indicates the provided sync token is invalid.
	ErrSyncUnauthorized = errors.New("invalid sync token")
)

// PlayerSyncService accepts roster pushes from the game server.
type PlayerSyncService interface {
	SyncPlayers(ctx context.Context, token string, req dto.PlayerSyncRequest) (dto.PlayerSyncResponse, error)
}

type playerSyncService struct {
	players   repository.PlayerRepository
	validator *validator.Validate
	enabled   bool
	token     string
	logger    zerolog.Logger
}

// NewPlayerSyncService constructs the roster sync service.
func NewPlayerSyncService(players repository.PlayerRepository, validate *validator.Validate, enabled bool, token string, logger zerolog.Logger) PlayerSyncService {
	return &playerSyncService{
		players:   players,
		validator: validate,
		enabled:   enabled,
		token:     token,
		logger:    logger.With().Str("component", "player_sync_service").Logger(),
	}
}

func (s *playerSyncService) SyncPlayers(ctx context.Context, token string, req dto.PlayerSyncRequest) (dto.PlayerSyncResponse, error) {
	if !s.enabled {
		return dto.PlayerSyncResponse{}, ErrSyncDisabled
	}
	if !s.validateToken(token) {
		return dto.PlayerSyncResponse{}, ErrSyncUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.PlayerSyncResponse{}, wrapInvalid(err)
	}

	players := make([]models.Player, 0, len(req.Players))
	for _, item := range req.Players {
		player, err := normalizePlayer(item)
		if err != nil {
			return dto.PlayerSyncResponse{}, err
		}
		players = append(players, player)
	}

	affected, err := s.players.UpsertBatch(ctx, players)
	if err != nil {
		return dto.PlayerSyncResponse{}, err
	}

	s.logger.Info().Int("received", len(players)).Int64("affected", affected).Msg("players synced")
	return dto.PlayerSyncResponse{Affected: affected}, nil
}

func (s *playerSyncService) validateToken(token string) bool {
	expected := strings.TrimSpace(s.token)
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.TrimSpace(token))) == 1
}

func normalizePlayer(item dto.PlayerSyncItem) (models.Player, error) {
	license := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(item.License)), licensePrefix)
	licenseID := licensePrefix + license
	if !utils.IsValidIdentifier(licenseID) {
		return models.Player{}, invalidArgument("invalid license %q", item.License)
	}

	parsed := utils.ParseIdentifiers(strings.Join(append(item.IDs, item.HWIDs...), ","))
	if len(parsed.Invalids) > 0 {
		return models.Player{}, invalidArgument("invalid identifiers for %s: %s", licenseID, strings.Join(parsed.Invalids, ", "))
	}

	ids := parsed.IDs
	if !slices.Contains(ids, licenseID) {
		ids = append([]string{licenseID}, ids...)
	}
	hwids := parsed.HWIDs
	if hwids == nil {
		hwids = []string{}
	}

	rawIDs, err := json.Marshal(ids)
	if err != nil {
		return models.Player{}, fmt.Errorf("encode ids: %w", err)
	}
	rawHWIDs, err := json.Marshal(hwids)
	if err != nil {
		return models.Player{}, fmt.Errorf("encode hwids: %w", err)
	}

	return models.Player{
		License:          license,
		IDs:              datatypes.JSON(rawIDs),
		HWIDs:            datatypes.JSON(rawHWIDs),
		DisplayName:      strings.TrimSpace(item.DisplayName),
		PlayTime:         item.PlayTime,
		TsJoined:         item.TsJoined,
		TsLastConnection: item.TsLastConnection,
	}, nil
}
