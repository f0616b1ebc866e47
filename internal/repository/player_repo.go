package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/action-ledger/internal/models"
)

// ErrPlayerNotFound indicates the player license is unknown.
var ErrPlayerNotFound = errors.New("player not found")

// PlayerRepository exposes the subset of player persistence the ledger relies on.
type PlayerRepository interface {
	Create(ctx context.Context, player *models.Player) error
	FindByLicense(ctx context.Context, license string) (models.Player, error)
	SetTargeting(ctx context.Context, license string, targeted bool, targetedBy string) error
	List(ctx context.Context) ([]models.Player, error)
	UpsertBatch(ctx context.Context, players []models.Player) (int64, error)
}

type playerRepository struct {
	db *gorm.DB
}

// NewPlayerRepository constructs the player repository.
func NewPlayerRepository(db *gorm.DB) PlayerRepository {
	return &playerRepository{db: db}
}

func (r *playerRepository) Create(ctx context.Context, player *models.Player) error {
	return r.db.WithContext(ctx).Create(player).Error
}

func (r *playerRepository) FindByLicense(ctx context.Context, license string) (models.Player, error) {
	var player models.Player
	if err := r.db.WithContext(ctx).Where("license = ?", license).First(&player).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Player{}, ErrPlayerNotFound
		}
		return models.Player{}, err
	}
	return player, nil
}

func (r *playerRepository) SetTargeting(ctx context.Context, license string, targeted bool, targetedBy string) error {
	var by *string
	if targeted && targetedBy != "" {
		by = &targetedBy
	}

	result := r.db.WithContext(ctx).Model(&models.Player{}).
		Where("license = ?", license).
		Updates(map[string]interface{}{
			"is_targeted": targeted,
			"targeted_by": by,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrPlayerNotFound
	}
	return nil
}

func (r *playerRepository) List(ctx context.Context) ([]models.Player, error) {
	var players []models.Player
	if err := r.db.WithContext(ctx).Order("ts_joined ASC").Find(&players).Error; err != nil {
		return nil, err
	}
	return players, nil
}

// UpsertBatch inserts unknown players and refreshes the roster columns of known
// ones. Join timestamps and targeting flags are left untouched on conflict.
func (r *playerRepository) UpsertBatch(ctx context.Context, players []models.Player) (int64, error) {
	if len(players) == 0 {
		return 0, nil
	}

	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "license"}},
		DoUpdates: clause.AssignmentColumns([]string{"ids", "hwids", "display_name", "play_time", "ts_last_connection"}),
	}).Create(&players)
	if result.Error != nil {
		return 0, result.Error
	}

	return result.RowsAffected, nil
}
