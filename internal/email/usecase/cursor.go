package usecase

import (
	"encoding/base64"
	"encoding/json"
	"time"

	"welcome-agent/internal/email/repository"
	appErrors "welcome-agent/pkg/errors"
)

type cursorPayload struct {
	CreatedAt time.Time `json:"t"`
	ID        string    `json:"id"`
}

func encodeCursor(c repository.Cursor) string {
	b, _ := json.Marshal(cursorPayload{CreatedAt: c.CreatedAt.UTC(), ID: c.ID})
	return base64.RawURLEncoding.EncodeToString(b)
}

func decodeCursor(s string) (*repository.Cursor, error) {
	if s == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, appErrors.NewBadRequest("invalid cursor")
	}
	var p cursorPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.ID == "" {
		return nil, appErrors.NewBadRequest("invalid cursor")
	}
	return &repository.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}, nil
}
