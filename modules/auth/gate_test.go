package auth

import (
	"testing"
	"time"

	domain "github.com/example/realtime-chat/domain/chat"
	"github.com/example/realtime-chat/modules/store"
)

// fakeDirectory is an in-memory Directory for gate tests.
type fakeDirectory struct {
	users map[string]*domain.User
}

func (d *fakeDirectory) FindByID(id string) (*domain.User, error) {
	user, ok := d.users[id]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	return user, nil
}

func newTestGate(t *testing.T) (*Gate, *JWTManager) {
	t.Helper()

	jwt := NewJWTManager(JWTConfig{
		SecretKey:     "test-secret",
		TokenDuration: time.Hour,
		Issuer:        "test",
	})
	dir := &fakeDirectory{
		users: map[string]*domain.User{
			"alice": {ID: "alice", Name: "Alice"},
		},
	}
	return NewGate(jwt, dir), jwt
}

func TestGate_Admit(t *testing.T) {
	gate, jwtManager := newTestGate(t)

	validToken, err := jwtManager.Generate("alice")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	unknownUserToken, err := jwtManager.Generate("nobody")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	tests := []struct {
		name       string
		token      string
		deviceID   string
		wantReason RejectReason
	}{
		{
			name:     "valid token and known user",
			token:    validToken,
			deviceID: "phone-1",
		},
		{
			name:       "missing token",
			token:      "",
			wantReason: RejectTokenMissing,
		},
		{
			name:       "garbage token",
			token:      "not-a-jwt",
			wantReason: RejectTokenInvalid,
		},
		{
			name:       "valid token for unknown user",
			token:      unknownUserToken,
			wantReason: RejectUserNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			authorized, rejection := gate.Admit(tt.token, tt.deviceID)

			if tt.wantReason != "" {
				if rejection == nil {
					t.Fatal("Admit() expected rejection, got nil")
				}
				if rejection.Reason != tt.wantReason {
					t.Errorf("Admit() reason = %q, want %q", rejection.Reason, tt.wantReason)
				}
				if authorized != nil {
					t.Error("Admit() returned both authorization and rejection")
				}
				return
			}

			if rejection != nil {
				t.Fatalf("Admit() unexpected rejection: %s", rejection.Reason)
			}
			if authorized.User.ID != "alice" {
				t.Errorf("Admit() user = %q, want %q", authorized.User.ID, "alice")
			}
			if authorized.DeviceID != tt.deviceID {
				t.Errorf("Admit() device = %q, want %q", authorized.DeviceID, tt.deviceID)
			}
		})
	}
}

func TestGate_Admit_ExpiredToken(t *testing.T) {
	dir := &fakeDirectory{users: map[string]*domain.User{"alice": {ID: "alice"}}}
	jwtManager := NewJWTManager(JWTConfig{
		SecretKey:     "test-secret",
		TokenDuration: -time.Minute,
		Issuer:        "test",
	})
	gate := NewGate(jwtManager, dir)

	token, err := jwtManager.Generate("alice")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	_, rejection := gate.Admit(token, "")
	if rejection == nil || rejection.Reason != RejectTokenInvalid {
		t.Errorf("Admit() rejection = %+v, want token_invalid", rejection)
	}
}

func TestJWTManager_Verify(t *testing.T) {
	manager := NewJWTManager(JWTConfig{
		SecretKey:     "test-secret",
		TokenDuration: time.Hour,
		Issuer:        "test",
	})

	token, err := manager.Generate("alice")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	claims, err := manager.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if claims.UserID != "alice" {
		t.Errorf("UserID = %q, want %q", claims.UserID, "alice")
	}

	// token signed with a different secret must not verify
	other := NewJWTManager(JWTConfig{SecretKey: "other-secret", TokenDuration: time.Hour})
	foreign, err := other.Generate("alice")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if _, err := manager.Verify(foreign); err == nil {
		t.Error("Verify() accepted token signed with a different secret")
	}
}
