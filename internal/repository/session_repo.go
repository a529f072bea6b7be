package repository

import (
	"errors"

	"github.com/opendeepwiki/ragchat/internal/model"
	"gorm.io/gorm"
)

type sessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Create(session *model.ChatSession) error {
	return r.db.Create(session).Error
}

func (r *sessionRepository) Get(id string) (*model.ChatSession, error) {
	var session model.ChatSession
	err := r.db.Where("id = ?", id).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepository) List() ([]model.ChatSession, error) {
	var sessions []model.ChatSession
	err := r.db.Order("updated_at desc").Find(&sessions).Error
	return sessions, err
}

func (r *sessionRepository) Save(session *model.ChatSession) error {
	return r.db.Save(session).Error
}

// IncrementTurns 累加对话轮次计数，failed 为 true 时同时累加失败计数
func (r *sessionRepository) IncrementTurns(id string, failed bool) error {
	updates := map[string]any{
		"turn_count": gorm.Expr("turn_count + ?", 1),
	}
	if failed {
		updates["failed_turns"] = gorm.Expr("failed_turns + ?", 1)
	}
	result := r.db.Model(&model.ChatSession{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *sessionRepository) Delete(id string) error {
	return r.db.Where("id = ?", id).Delete(&model.ChatSession{}).Error
}
