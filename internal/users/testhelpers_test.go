package users

import (
	"errors"
	"fmt"
	"testing"

	"github.com/PabloPavan/userdesk/internal/apperrors"
)

func sampleUsers(n int) []User {
	out := make([]User, 0, n)
	for i := 1; i <= n; i++ {
		g, s := GenderMale, StatusActive
		if i%2 == 0 {
			g, s = GenderFemale, StatusInactive
		}
		out = append(out, User{
			ID:     int64(i),
			Name:   fmt.Sprintf("User %c", 'A'+rune(i-1)),
			Email:  fmt.Sprintf("user%d@example.com", i),
			Gender: g,
			Status: s,
		})
	}
	return out
}

func assertKind(t *testing.T, err error, kind apperrors.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error kind %s", kind)
	}
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) {
		t.Fatalf("expected app error, got: %v", err)
	}
	if appErr.Kind != kind {
		t.Fatalf("expected kind %s, got %s", kind, appErr.Kind)
	}
}
