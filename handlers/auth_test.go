package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"streampick/models"
)

func TestAPIKeyChecker(t *testing.T) {
	checker := NewAPIKeyChecker(func() string { return "secret" })

	tests := []struct {
		name    string
		headers map[string]string
		want    *models.AuthInfo
		wantErr bool
	}{
		{"no credentials", nil, nil, false},
		{"bearer match", map[string]string{"Authorization": "Bearer secret"}, &models.AuthInfo{Username: "owner", Role: models.RoleOwner}, false},
		{"header match", map[string]string{"X-Api-Key": "secret"}, &models.AuthInfo{Username: "owner", Role: models.RoleOwner}, false},
		{"bearer mismatch", map[string]string{"Authorization": "Bearer wrong"}, nil, true},
		{"non-bearer ignored", map[string]string{"Authorization": "Basic abc"}, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			info, err := checker.Check(req)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v", err)
			}
			if tt.want == nil && info != nil {
				t.Fatalf("info = %+v", info)
			}
			if tt.want != nil && (info == nil || *info != *tt.want) {
				t.Fatalf("info = %+v, want %+v", info, tt.want)
			}
		})
	}
}

func TestAPIKeyCheckerUnconfigured(t *testing.T) {
	checker := NewAPIKeyChecker(func() string { return "" })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Api-Key", "anything")
	if _, err := checker.Check(req); err == nil {
		t.Error("key accepted with no configured key")
	}
}
