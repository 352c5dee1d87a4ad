package api

import "quadplan/domain"

const postCommandMaxSize = 64 * 1024 // 64 KiB

// POST /api/commands response body
type postCommandResponse struct {
	IdempotencyKeys []string        `json:"idempotencyKeys,omitempty"`
	Results         []commandResult `json:"results,omitempty"`
	Error           string          `json:"error,omitempty"`
}

type stateResponse struct {
	Boards      []domain.Board     `json:"boards"`
	Tasks       []domain.Task      `json:"tasks"`
	Preferences domain.Preferences `json:"preferences"`
}
