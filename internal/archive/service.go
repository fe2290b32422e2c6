// Package archive keeps the durable Postgres trail of matches and messages.
// Live room state belongs to the real-time store; the archive is what
// moderation and the maintenance sweep work from.
package archive

import (
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"pairchat/backend/internal/models"
)

// Recorder is the hub's view of the archive, kept narrow so the service can
// run without Postgres and tests can substitute a mock.
type Recorder interface {
	RecordRoom(roomID string, participants []string, startedAt time.Time) error
	RecordMessage(roomID, senderID, text string) error
	CloseRoom(roomID string) error
}

// Service implements Recorder over Postgres.
type Service struct {
	DB *gorm.DB
}

// NewService creates an archive service over the given database.
func NewService(db *gorm.DB) *Service {
	return &Service{DB: db}
}

// RecordRoom stores the room's archive row. Both sides of a match record the
// same room, so creation is first-wins on the room ID.
func (s *Service) RecordRoom(roomID string, participants []string, startedAt time.Time) error {
	record := models.RoomRecord{RoomID: roomID}
	defaults := models.RoomRecord{
		RoomID:       roomID,
		Participants: participants,
		IsActive:     true,
		StartedAt:    startedAt,
	}

	result := s.DB.Where("room_id = ?", roomID).FirstOrCreate(&record, defaults)
	if result.Error != nil {
		log.Error().Err(result.Error).Str("room_id", roomID).Msg("failed to record room")
		return result.Error
	}
	return nil
}

// RecordMessage stores one message row.
func (s *Service) RecordMessage(roomID, senderID, text string) error {
	record := models.MessageRecord{
		RoomID:   roomID,
		SenderID: senderID,
		Text:     text,
	}
	if err := s.DB.Create(&record).Error; err != nil {
		log.Error().Err(err).Str("room_id", roomID).Msg("failed to record message")
		return err
	}
	return nil
}

// CloseRoom marks the room's archive row inactive.
func (s *Service) CloseRoom(roomID string) error {
	return s.DB.Model(&models.RoomRecord{}).
		Where("room_id = ?", roomID).
		Updates(map[string]interface{}{
			"is_active": false,
			"ended_at":  gorm.Expr("NOW()"),
		}).Error
}

// ActiveRoomIDs returns the IDs of all rooms still marked active.
func (s *Service) ActiveRoomIDs() ([]string, error) {
	var roomIDs []string
	if err := s.DB.Model(&models.RoomRecord{}).
		Where("is_active = ?", true).
		Pluck("room_id", &roomIDs).Error; err != nil {
		return nil, err
	}
	return roomIDs, nil
}

// RoomHistory returns the archived messages of a room in send order.
func (s *Service) RoomHistory(roomID string) ([]models.MessageRecord, error) {
	var history []models.MessageRecord
	err := s.DB.Where("room_id = ?", roomID).Order("created_at asc").Find(&history).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return history, nil
		}
		return nil, err
	}
	return history, nil
}

// NopRecorder discards everything. Used when the service runs without
// Postgres configured.
type NopRecorder struct{}

func (NopRecorder) RecordRoom(string, []string, time.Time) error { return nil }
func (NopRecorder) RecordMessage(string, string, string) error   { return nil }
func (NopRecorder) CloseRoom(string) error                       { return nil }
