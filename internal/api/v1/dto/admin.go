package dto

type AdminLoginDTO struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type AdminLoginResponseDTO struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}

type PromptUpdateDTO struct {
	Content string `json:"content" validate:"required,max=20000"`
}

type PageViewDTO struct {
	Path      string `json:"path" validate:"required,max=500"`
	Referrer  string `json:"referrer" validate:"max=1000"`
	VisitorID string `json:"visitor_id" validate:"max=100"`
}
