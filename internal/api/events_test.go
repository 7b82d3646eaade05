package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colorbook/colorbook-server/internal/sse"
)

func TestCommittedWritesAreStreamed(t *testing.T) {
	ts := setupTestServer(t)
	client, err := ts.services.Events.Connect()
	require.NoError(t, err)
	t.Cleanup(func() { ts.services.Events.Disconnect(client.ID) })

	id := ts.createCategory(t, "Animals")
	rec := ts.send(t, http.MethodDelete, "/api/v1/categories/"+id)
	require.Equal(t, http.StatusOK, rec.Code)

	var got []sse.EventType
	for len(got) < 2 {
		select {
		case e := <-client.EventChan:
			got = append(got, e.Type)
		case <-time.After(2 * time.Second):
			t.Fatalf("received only %v", got)
		}
	}
	assert.Equal(t, []sse.EventType{sse.EventCategoryChanged, sse.EventCategoryDeleted}, got)
}

func TestFailedWritesAreNotStreamed(t *testing.T) {
	ts := setupTestServer(t)
	client, err := ts.services.Events.Connect()
	require.NoError(t, err)
	t.Cleanup(func() { ts.services.Events.Disconnect(client.ID) })

	rec := ts.send(t, http.MethodPost, "/api/v1/pages", field("title", "No Image"))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	select {
	case e := <-client.EventChan:
		t.Fatalf("unexpected event %s", e.Type)
	case <-time.After(100 * time.Millisecond):
	}
}
