package gateway

import (
	"net/http"
	"testing"

	"cooplend/service"

	"github.com/stretchr/testify/assert"
)

func TestStatusForKind(t *testing.T) {
	tests := map[service.ErrorKind]int{
		service.KindValidation:         http.StatusBadRequest,
		service.KindPreconditionFailed: http.StatusConflict,
		service.KindInsufficientFunds:  http.StatusUnprocessableEntity,
		service.KindSystemFrozen:       http.StatusLocked,
		service.KindForbidden:          http.StatusForbidden,
		service.KindRateLimited:        http.StatusTooManyRequests,
		service.KindInternal:           http.StatusInternalServerError,
		service.ErrorKind("unknown"):   http.StatusInternalServerError,
	}

	for kind, status := range tests {
		assert.Equal(t, status, statusForKind(kind), "kind %s", kind)
	}
}
