// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/docchat/internal/model"
	"github.com/jeranaias/docchat/internal/telemetry"
)

func newTestClient(t *testing.T, h http.Handler, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(&ClientConfig{BaseURL: srv.URL, PathPrefix: "/api/v1", Timeout: 2 * time.Second}, opts...)
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient(&ClientConfig{BaseURL: "http://example.test/", PathPrefix: "api/v1/"})
	cfg := c.Config()

	assert.Equal(t, "http://example.test", cfg.BaseURL)
	assert.Equal(t, "/api/v1", cfg.PathPrefix)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, "http://example.test/api/v1/search", c.URL("/search"))

	c = NewClient(nil)
	assert.Equal(t, "http://localhost:8000/api/v1/feedback", c.URL("/feedback"))
}

func TestCreateConversation(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/conversations", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body CreateConversationRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "billing", body.Domain)

		_, _ = w.Write([]byte(`{"id":"c1"}`))
	})

	id, err := newTestClient(t, mux).CreateConversation(context.Background(), "billing")
	require.NoError(t, err)
	assert.Equal(t, "c1", id)
}

func TestCreateConversationNumericID(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id": 417}`))
	})

	id, err := newTestClient(t, h).CreateConversation(context.Background(), "general")
	require.NoError(t, err)
	assert.Equal(t, "417", id)
}

func TestCreateConversationErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		check   func(error) bool
		status  int
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			check:  IsTransient,
			status: http.StatusInternalServerError,
		},
		{
			name: "malformed json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"id":`))
			},
			check: IsMalformed,
		},
		{
			name: "missing id",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{}`))
			},
			check: IsMalformed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestClient(t, tt.handler).CreateConversation(context.Background(), "general")
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected classification: %v", err)
			assert.Equal(t, tt.status, StatusCode(err))
		})
	}
}

func TestConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c := NewClient(&ClientConfig{BaseURL: base, Timeout: time.Second})
	_, err := c.CreateConversation(context.Background(), "general")
	require.Error(t, err)
	assert.True(t, IsTransient(err))
	assert.True(t, errors.Is(err, ErrConnection))
}

func TestGetConversation(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/conversations/c1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		_, _ = w.Write([]byte(`{
			"id": "c1",
			"messages": [
				{"id": 1, "role": "user", "content": "hi", "feedback": null},
				{"id": 2, "role": "assistant", "content": "**hello**", "feedback": true,
				 "supporting_docs": [{"content": "Doc", "metadata": {"title": "Guide"}, "score": 0.5}],
				 "created_at": "2025-01-02T03:04:05Z"}
			]
		}`))
	})

	conv, err := newTestClient(t, mux).GetConversation(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, ID("c1"), conv.ID)
	require.Len(t, conv.Messages, 2)

	user := conv.Messages[0]
	assert.Equal(t, "user", user.Role)
	assert.Equal(t, model.FeedbackUnset, user.Feedback)
	assert.Empty(t, user.SupportingDocs)
	assert.True(t, user.Timestamp().IsZero())

	asst := conv.Messages[1]
	require.NotNil(t, asst.ID.Int64())
	assert.Equal(t, int64(2), *asst.ID.Int64())
	assert.Equal(t, model.FeedbackPositive, asst.Feedback)
	require.Len(t, asst.SupportingDocs, 1)
	assert.Equal(t, "Guide", asst.SupportingDocs[0].DisplayTitle())
	assert.Equal(t, 2025, asst.Timestamp().Year())
}

func TestGetConversationMalformed(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	})
	_, err := newTestClient(t, h).GetConversation(context.Background(), "c1")
	require.Error(t, err)
	assert.True(t, IsMalformed(err))
}

func TestSearch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/search", func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		assert.Equal(t, "What is X?", raw["query"])
		assert.Equal(t, "general", raw["domain"])
		assert.Equal(t, "c1", raw["conversation_id"])
		assert.NotContains(t, raw, "latitude")
		assert.NotContains(t, raw, "longitude")
		assert.NotContains(t, raw, "country")

		w.Header().Set(MessageIDHeader, "42")
		_, _ = w.Write([]byte("Hello"))
	})

	resp, err := newTestClient(t, mux).Search(context.Background(), SearchRequest{
		Query:          "What is X?",
		Domain:         "general",
		ConversationID: "c1",
	})
	require.NoError(t, err)
	defer resp.Close()

	require.NotNil(t, resp.MessageID)
	assert.Equal(t, int64(42), *resp.MessageID)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "Hello", string(body))
}

func TestSearchWithLocation(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		assert.Equal(t, 52.5, raw["latitude"])
		assert.Equal(t, 13.4, raw["longitude"])
		assert.Equal(t, "Germany", raw["country"])
	})

	lat, lon := 52.5, 13.4
	resp, err := newTestClient(t, h).Search(context.Background(), SearchRequest{
		Query: "q", Domain: "general", ConversationID: "c1",
		Latitude: &lat, Longitude: &lon, Country: "Germany",
	})
	require.NoError(t, err)
	defer resp.Close()
	assert.Nil(t, resp.MessageID)
}

func TestSearchStatusError(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err := newTestClient(t, h).Search(context.Background(), SearchRequest{Query: "q"})
	require.Error(t, err)
	assert.True(t, IsTransient(err))
	assert.Equal(t, http.StatusBadGateway, StatusCode(err))
}

func TestSearchCanceled(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	c := newTestClient(t, h)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Search(ctx, SearchRequest{Query: "q"})
	require.Error(t, err)
	assert.True(t, IsCanceled(err))
	assert.False(t, IsTransient(err))
}

func TestSubmitFeedback(t *testing.T) {
	var got FeedbackRequest
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/feedback", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	})

	err := newTestClient(t, mux).SubmitFeedback(context.Background(), 42, false)
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.MessageID)
	assert.False(t, got.Feedback)
}

func TestSubmitFeedbackFailure(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	err := newTestClient(t, h).SubmitFeedback(context.Background(), 1, true)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStatus))
}

func TestRequestMetrics(t *testing.T) {
	m := telemetry.New(prometheus.NewRegistry())
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"c1"}`))
	})
	c := newTestClient(t, h, WithMetrics(m))

	_, err := c.CreateConversation(context.Background(), "general")
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues(EndpointCreateConversation, telemetry.OutcomeOK)))
}

func TestParseMessageID(t *testing.T) {
	tests := []struct {
		in   string
		want *int64
	}{
		{"42", model.Int64(42)},
		{" 7 ", model.Int64(7)},
		{"", nil},
		{"abc", nil},
		{"1.5", nil},
		{"12abc", nil},
		{"-3", model.Int64(-3)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseMessageID(tt.in))
		})
	}
}

func TestIDUnmarshal(t *testing.T) {
	var v struct {
		A ID `json:"a"`
		B ID `json:"b"`
		C ID `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"x","b":12,"c":null}`), &v))
	assert.Equal(t, ID("x"), v.A)
	assert.Equal(t, ID("12"), v.B)
	assert.Equal(t, ID(""), v.C)

	assert.Error(t, json.Unmarshal([]byte(`{"a":true}`), &v))
}

func TestClientErrorMessage(t *testing.T) {
	err := &ClientError{Type: ErrTypeStatus, Message: "search failed", StatusCode: 500, Cause: errors.New("boom")}
	assert.Equal(t, "search failed (status 500): boom", err.Error())
	assert.Equal(t, "status", ErrTypeStatus.String())
	assert.True(t, IsProtocol(&ClientError{Type: ErrTypeProtocol}))
	assert.False(t, IsTransient(errors.New("plain")))
}
