package dto

type CreateInvitationRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}
