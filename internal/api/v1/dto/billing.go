package dto

type CheckoutRequestDTO struct {
	Provider string `json:"provider" validate:"omitempty,oneof=creem stripe"`
}

type CheckoutResponseDTO struct {
	URL string `json:"url"`
}
