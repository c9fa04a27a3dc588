package models

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestIsRestricted(t *testing.T) {
	cases := []struct {
		name      string
		banned    bool
		suspended bool
		want      bool
	}{
		{"clean account", false, false, false},
		{"banned", true, false, true},
		{"suspended", false, true, true},
		{"both", true, true, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			u := &User{IsBanned: tc.banned, IsSuspended: tc.suspended}
			if got := u.IsRestricted(); got != tc.want {
				t.Errorf("IsRestricted() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestPublicOmitsCredentials(t *testing.T) {
	token := "stored-refresh-token"
	u := &User{
		ID:           "u1",
		Email:        "u1@example.com",
		Username:     "u1",
		PasswordHash: "$2a$10$hash",
		RefreshToken: &token,
		IsBanned:     true,
	}

	data, err := json.Marshal(u.Public())
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}

	body := string(data)
	if strings.Contains(body, "hash") || strings.Contains(body, "refresh") {
		t.Errorf("public projection leaks credentials: %s", body)
	}
	if strings.Contains(body, "is_banned") {
		t.Errorf("public projection exposes moderation flags: %s", body)
	}
	if !strings.Contains(body, `"id":"u1"`) {
		t.Errorf("public projection missing id: %s", body)
	}
}

func TestUserJSONHidesSecrets(t *testing.T) {
	token := "stored-refresh-token"
	u := &User{ID: "u1", PasswordHash: "secret", RefreshToken: &token}

	data, err := json.Marshal(u)
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}

	if strings.Contains(string(data), "secret") || strings.Contains(string(data), token) {
		t.Errorf("user marshals secrets: %s", data)
	}
}
