package handler

import "time"

type registerRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=72"`
	Passkey  string `json:"passkey"  validate:"required"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type userSummary struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type loginResponse struct {
	Token string      `json:"token"`
	User  userSummary `json:"user"`
}

type logoutResponse struct {
	OK bool      `json:"ok"`
	At time.Time `json:"at"`
}

type errorResponse struct {
	Error string `json:"error"`
}
