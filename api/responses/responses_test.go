package responses

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/collectibles-backend/pkg/errors"
	"github.com/angelmondragon/collectibles-backend/pkg/logger"
)

type envelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestWriteErrorExposesValidationMessageAndDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(context.Background(), nil, rec, pkgerrors.New(pkgerrors.CodeInvalidItem, "item price must be greater than zero").
		WithDetails(map[string]any{"field": "item.price"}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decode(t, rec)
	assert.Equal(t, "INVALID_ITEM", env.Error.Code)
	assert.Equal(t, "item price must be greater than zero", env.Error.Message)
	assert.Equal(t, "item.price", env.Error.Details["field"])
}

func TestWriteErrorHidesCollaboratorDetail(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: buf})
	rec := httptest.NewRecorder()

	err := pkgerrors.Wrap(pkgerrors.CodePaymentSessionCreationFailed, errors.New("stripe: No such price"), "create checkout session").
		WithDetails(map[string]any{"processor_message": "No such price"})
	WriteError(context.Background(), logg, rec, err)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	env := decode(t, rec)
	assert.Equal(t, "PAYMENT_SESSION_CREATION_FAILED", env.Error.Code)
	assert.NotContains(t, rec.Body.String(), "No such price")
	assert.Nil(t, env.Error.Details)
	assert.Contains(t, buf.String(), "No such price")
	assert.Contains(t, buf.String(), "request.error")
}

func TestWriteErrorWrapsUntypedErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(context.Background(), nil, rec, errors.New("boom"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	env := decode(t, rec)
	assert.Equal(t, "INTERNAL_ERROR", env.Error.Code)
	assert.Equal(t, "internal server error", env.Error.Message)
}

func TestWriteSuccessAndBareJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteSuccess(rec, map[string]string{"status": "ready"})
	assert.Equal(t, `{"data":{"status":"ready"}}`, strings.TrimSpace(rec.Body.String()))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	rec = httptest.NewRecorder()
	WriteJSON(rec, http.StatusOK, map[string]bool{"received": true})
	assert.Equal(t, `{"received":true}`, strings.TrimSpace(rec.Body.String()))
}
