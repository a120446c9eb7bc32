package dto

import (
	"encoding/json"

	"tarot/internal/model"
)

type TopicCreateDTO struct {
	Title    string `json:"title" validate:"required,max=200"`
	Question string `json:"question" validate:"max=2000"`
}

type TopicEventCreateDTO struct {
	Title   string          `json:"title" validate:"required,max=200"`
	Content string          `json:"content" validate:"max=20000"`
	Cards   json.RawMessage `json:"cards,omitempty"`
}

type TopicDetailResponseDTO struct {
	Topic  model.Topic        `json:"topic"`
	Events []model.TopicEvent `json:"events"`
}
