package handler

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"google.golang.org/grpc/codes"

	"github.com/rl1809/mall-cart/internal/core/domain"
	"github.com/rl1809/mall-cart/internal/core/service"
)

func TestConflictStatusKeepsReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("%w: %w", domain.ErrConflict, service.ErrDuplicateRequest), "in progress"},
		{fmt.Errorf("%w: %w", domain.ErrConflict, service.ErrMutationIDReused), "different request"},
	}

	for _, tt := range tests {
		status, message := httpStatus(tt.err)
		if status != http.StatusConflict || !strings.Contains(message, tt.want) {
			t.Errorf("expected 409 mentioning %q, got %d %q", tt.want, status, message)
		}
		if code := grpcCode(tt.err); code != codes.AlreadyExists {
			t.Errorf("expected AlreadyExists, got %v", code)
		}
	}
}

func TestStorageStatusHidesDetails(t *testing.T) {
	err := fmt.Errorf("%w: update line: %w", domain.ErrStorage, domain.ErrNotFound)

	status, message := httpStatus(err)
	if status != http.StatusInternalServerError || message != "internal error" {
		t.Errorf("expected 500 internal error, got %d %q", status, message)
	}
}
