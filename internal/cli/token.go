package cli

import (
	"fmt"
	"time"

	"locshare/internal/common/jwt"
)

// GenerateUserToken mints a short-lived JWT for a user, for connecting a
// client shell to the sharing service during development.
//
// Keep this package dev/internal only. Do not call it from production code paths.
func GenerateUserToken(secret, userID string) (string, jwt.Claims, error) {
	mgr := jwt.NewManager(secret, 2*time.Hour)

	token, claims, err := mgr.IssueUserToken(userID)
	if err != nil {
		return "", jwt.Claims{}, fmt.Errorf("issue token: %w", err)
	}

	return token, *claims, nil
}
