package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dbi-software/hive/database"
	"github.com/dbi-software/hive/services"
)

func TestAuthMiddleware(t *testing.T) {
	t.Parallel()

	authService := services.NewAuthService("test-secret")
	mw := NewAuthMiddleware(authService)

	handler := mw.Auth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := UserID(r)
		if !ok {
			t.Error("user id missing from context")
		}
		writeJSON(w, http.StatusOK, map[string]string{"userId": userID})
	}))

	token, err := authService.CreateAccessToken("u1")
	if err != nil {
		t.Fatalf("CreateAccessToken: %v", err)
	}

	cases := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer garbage", http.StatusUnauthorized},
		{"valid token", "Bearer " + token, http.StatusOK},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			if tc.wantStatus == http.StatusOK {
				var body map[string]string
				if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
					t.Fatalf("decode body: %v", err)
				}
				if body["userId"] != "u1" {
					t.Errorf("userId = %q, want u1", body["userId"])
				}
			}
		})
	}
}

func TestWriteServiceError(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"not found", database.ErrNotFound, http.StatusNotFound},
		{"email taken", database.ErrEmailTaken, http.StatusConflict},
		{"invalid filter", database.ErrInvalidFilter, http.StatusBadRequest},
		{"invalid input", services.ErrInvalidInput, http.StatusBadRequest},
		{"unknown", http.ErrBodyNotAllowed, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			rec := httptest.NewRecorder()
			writeServiceError(rec, tc.err)
			if rec.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			var body map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body["error"] == "" {
				t.Error("error message missing")
			}
		})
	}
}
