package users

import (
	"context"

	"github.com/PabloPavan/userdesk/internal/telemetry"
)

// Normalize rewrites gender and status from the remote vocabulary to the
// internal one. Values other than "male" and "active" map to mujer and
// inactivo respectively.
func Normalize(r RemoteUser) User {
	g := GenderFemale
	if r.Gender == remoteMale {
		g = GenderMale
	}
	s := StatusInactive
	if r.Status == remoteActive {
		s = StatusActive
	}
	return User{
		ID:     r.ID,
		Name:   r.Name,
		Email:  r.Email,
		Gender: g,
		Status: s,
	}
}

func NormalizeAll(ctx context.Context, list []RemoteUser) []User {
	out := make([]User, 0, len(list))
	for _, r := range list {
		if !knownRemoteVocabulary(r) {
			telemetry.LogWarn(ctx, "unknown remote vocabulary",
				telemetry.LogString("event", "users.transform.unknown_vocabulary"),
				telemetry.LogInt64("user.id", r.ID),
				telemetry.LogString("user.gender", r.Gender),
				telemetry.LogString("user.status", r.Status),
			)
		}
		out = append(out, Normalize(r))
	}
	return out
}

func knownRemoteVocabulary(r RemoteUser) bool {
	genderOK := r.Gender == remoteMale || r.Gender == remoteFemale
	statusOK := r.Status == remoteActive || r.Status == remoteInactive
	return genderOK && statusOK
}
