package chathub_test

import (
	"time"

	"github.com/stretchr/testify/mock"
)

type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) RecordRoom(roomID string, participants []string, startedAt time.Time) error {
	args := m.Called(roomID, participants, startedAt)
	return args.Error(0)
}

func (m *MockRecorder) RecordMessage(roomID, senderID, text string) error {
	args := m.Called(roomID, senderID, text)
	return args.Error(0)
}

func (m *MockRecorder) CloseRoom(roomID string) error {
	args := m.Called(roomID)
	return args.Error(0)
}
