package postgres

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReplayOf_Defaults(t *testing.T) {
	r := replayOf(IdempotencyRecord{Response: []byte(`{"id":"1"}`)})

	assert.Equal(t, http.StatusOK, r.StatusCode)
	assert.Equal(t, "application/json", r.ContentType)
	assert.JSONEq(t, `{"id":"1"}`, string(r.Body))
}

func TestReplayOf_StoredResponse(t *testing.T) {
	status := http.StatusConflict
	ct := "application/problem+json"
	r := replayOf(IdempotencyRecord{StatusCode: &status, ContentType: &ct})

	assert.Equal(t, http.StatusConflict, r.StatusCode)
	assert.Equal(t, ct, r.ContentType)
}
