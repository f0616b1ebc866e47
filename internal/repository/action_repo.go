package repository

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"gorm.io/gorm"

	"github.com/noah-isme/action-ledger/internal/models"
)

// ErrActionNotFound indicates no action exists with the requested id.
var ErrActionNotFound = errors.New("action not found")

// ErrImmutableField indicates a mutation tried to rewrite an action's identity or timestamp.
var ErrImmutableField = errors.New("action id, type and timestamp are immutable")

// ActionQuery narrows full scans of the ledger.
type ActionQuery struct {
	Types []models.ActionType
}

// ActionRepository is the ordered, durable collection that holds every action.
type ActionRepository interface {
	Insert(ctx context.Context, action models.Action) error
	FindByID(ctx context.Context, id string) (models.Action, error)
	Exists(ctx context.Context, id string) (bool, error)
	List(ctx context.Context, query ActionQuery) ([]models.Action, error)
	Update(ctx context.Context, id string, mutate func(models.Action) error) (models.Action, error)
	Transaction(ctx context.Context, fn func(store ActionRepository) error) error
}

type actionRepository struct {
	db *gorm.DB
	// mu serializes writers; nil inside a transaction that already holds it.
	mu *sync.Mutex
}

// NewActionRepository constructs the gorm backed action store.
func NewActionRepository(db *gorm.DB) ActionRepository {
	return &actionRepository{db: db, mu: &sync.Mutex{}}
}

func (r *actionRepository) lock() func() {
	if r.mu == nil {
		return func() {}
	}
	r.mu.Lock()
	return r.mu.Unlock
}

func (r *actionRepository) Insert(ctx context.Context, action models.Action) error {
	record, err := encodeAction(action)
	if err != nil {
		return err
	}

	unlock := r.lock()
	defer unlock()

	return r.db.WithContext(ctx).Create(&record).Error
}

func (r *actionRepository) FindByID(ctx context.Context, id string) (models.Action, error) {
	var record models.ActionRecord
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrActionNotFound
		}
		return nil, err
	}

	return decodeAction(record)
}

func (r *actionRepository) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.ActionRecord{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *actionRepository) List(ctx context.Context, query ActionQuery) ([]models.Action, error) {
	tx := r.db.WithContext(ctx).Model(&models.ActionRecord{})
	if len(query.Types) > 0 {
		types := make([]string, 0, len(query.Types))
		for _, t := range query.Types {
			types = append(types, string(t))
		}
		tx = tx.Where("type IN ?", types)
	}

	var records []models.ActionRecord
	if err := tx.Order("timestamp ASC, id ASC").Find(&records).Error; err != nil {
		return nil, err
	}

	actions := make([]models.Action, 0, len(records))
	for _, record := range records {
		action, err := decodeAction(record)
		if err != nil {
			return nil, err
		}
		actions = append(actions, action)
	}

	// collations differ between drivers; callers rely on byte order of ids
	slices.SortStableFunc(actions, func(a, b models.Action) int {
		if c := cmp.Compare(a.Base().Timestamp, b.Base().Timestamp); c != 0 {
			return c
		}
		return strings.Compare(a.Base().ID, b.Base().ID)
	})

	return actions, nil
}

func (r *actionRepository) Update(ctx context.Context, id string, mutate func(models.Action) error) (models.Action, error) {
	unlock := r.lock()
	defer unlock()

	var updated models.Action
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record models.ActionRecord
		if err := tx.Where("id = ?", id).First(&record).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrActionNotFound
			}
			return err
		}

		action, err := decodeAction(record)
		if err != nil {
			return err
		}
		if err := mutate(action); err != nil {
			return err
		}

		next, err := encodeAction(action)
		if err != nil {
			return err
		}
		if next.ID != record.ID || next.Type != record.Type || next.Timestamp != record.Timestamp {
			return fmt.Errorf("update %s: %w", id, ErrImmutableField)
		}

		if err := tx.Save(&next).Error; err != nil {
			return err
		}

		updated = action
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func (r *actionRepository) Transaction(ctx context.Context, fn func(store ActionRepository) error) error {
	unlock := r.lock()
	defer unlock()

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&actionRepository{db: tx})
	})
}
