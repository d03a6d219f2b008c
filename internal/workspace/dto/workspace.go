package dto

type CreateWorkspaceRequest struct {
	Name string `json:"name" binding:"required" validate:"required,max=100"`
}

type RenameWorkspaceRequest struct {
	Name string `json:"name" binding:"required" validate:"required,max=100"`
}

type InviteMemberRequest struct {
	Email string `json:"email" binding:"required,email"`
}
