package dto

import "encoding/json"

type CardDTO struct {
	Name     string `json:"name" validate:"required,max=100"`
	Position string `json:"position" validate:"max=100"`
	Reversed bool   `json:"reversed"`
}

type ReadingRequestDTO struct {
	Question   string    `json:"question" validate:"required,max=2000"`
	Spread     string    `json:"spread" validate:"max=100"`
	Cards      []CardDTO `json:"cards" validate:"required,min=1,max=20,dive"`
	TopicTitle string    `json:"topic_title" validate:"max=200"`
}

type ReadingResponseDTO struct {
	Reading string `json:"reading"`
	Model   string `json:"model"`
}

type ShareCreateDTO struct {
	Question       string          `json:"question" validate:"required,max=2000"`
	Spread         string          `json:"spread" validate:"max=100"`
	Cards          json.RawMessage `json:"cards"`
	Interpretation string          `json:"interpretation" validate:"required,max=50000"`
}

type ShareCreateResponseDTO struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}
