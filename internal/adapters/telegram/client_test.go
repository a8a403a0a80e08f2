package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alekspetrov/ideabot/internal/testutil"
)

// fakeAPI serves Bot API methods from canned results and records requests.
type fakeAPI struct {
	t        *testing.T
	results  map[string]any
	failures map[string]apiResponse
	requests map[string]map[string]any
	files    map[string][]byte
}

func newFakeAPI(t *testing.T) (*fakeAPI, *Client) {
	api := &fakeAPI{
		t:        t,
		results:  map[string]any{},
		failures: map[string]apiResponse{},
		requests: map[string]map[string]any{},
		files:    map[string][]byte{},
	}
	server := httptest.NewServer(api)
	t.Cleanup(server.Close)
	return api, NewClientWithBaseURL(testutil.FakeTelegramBotToken, server.URL)
}

func (a *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	prefix := "/bot" + testutil.FakeTelegramBotToken + "/"
	filePrefix := "/file/bot" + testutil.FakeTelegramBotToken + "/"

	switch {
	case len(r.URL.Path) > len(filePrefix) && r.URL.Path[:len(filePrefix)] == filePrefix:
		data, ok := a.files[r.URL.Path[len(filePrefix):]]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write(data)

	case len(r.URL.Path) > len(prefix) && r.URL.Path[:len(prefix)] == prefix:
		method := r.URL.Path[len(prefix):]
		var body map[string]any
		assert.NoError(a.t, json.NewDecoder(r.Body).Decode(&body))
		a.requests[method] = body

		if fail, ok := a.failures[method]; ok {
			w.WriteHeader(fail.ErrorCode)
			_ = json.NewEncoder(w).Encode(fail)
			return
		}
		result, err := json.Marshal(a.results[method])
		assert.NoError(a.t, err)
		_ = json.NewEncoder(w).Encode(apiResponse{OK: true, Result: result})

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func TestCheckSingleton(t *testing.T) {
	tests := []struct {
		name     string
		failure  *apiResponse
		wantErr  error
		wantCode int
	}{
		{
			name: "no conflict - bot is free",
		},
		{
			name: "conflict - another instance running",
			failure: &apiResponse{
				ErrorCode:   409,
				Description: "Conflict: terminated by other getUpdates request",
			},
			wantErr: ErrConflict,
		},
		{
			name: "other API error",
			failure: &apiResponse{
				ErrorCode:   401,
				Description: "Unauthorized",
			},
			wantCode: 401,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api, client := newFakeAPI(t)
			api.results["getUpdates"] = []*Update{}
			if tt.failure != nil {
				api.failures["getUpdates"] = *tt.failure
			}

			err := client.CheckSingleton(context.Background())

			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.wantCode != 0:
				var apiErr *APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, tt.wantCode, apiErr.Code)
				assert.False(t, errors.Is(err, ErrConflict))
			default:
				require.NoError(t, err)
				assert.EqualValues(t, -1, api.requests["getUpdates"]["offset"])
				assert.EqualValues(t, 0, api.requests["getUpdates"]["timeout"])
			}
		})
	}
}

func TestGetUpdates(t *testing.T) {
	api, client := newFakeAPI(t)
	api.results["getUpdates"] = []*Update{
		{UpdateID: 10, Message: &Message{MessageID: 1, Chat: &Chat{ID: 5}, Text: "hello"}},
		{UpdateID: 11, CallbackQuery: &CallbackQuery{ID: "cb", From: &User{ID: 5}, Data: "star:abc"}},
	}

	updates, err := client.GetUpdates(context.Background(), 10, 30)
	require.NoError(t, err)
	require.Len(t, updates, 2)
	assert.Equal(t, "hello", updates[0].Message.Text)
	assert.Equal(t, "star:abc", updates[1].CallbackQuery.Data)
	assert.EqualValues(t, 10, api.requests["getUpdates"]["offset"])
}

func TestSendMessageWithKeyboard(t *testing.T) {
	api, client := newFakeAPI(t)
	api.results["sendMessage"] = Message{MessageID: 99, Chat: &Chat{ID: 5}}

	kb := keyboard([]InlineKeyboardButton{button("⭐ Star", "star:01ABC")})
	msg, err := client.SendMessage(context.Background(), 5, "hi", kb)
	require.NoError(t, err)
	assert.EqualValues(t, 99, msg.MessageID)

	req := api.requests["sendMessage"]
	assert.EqualValues(t, 5, req["chat_id"])
	assert.Equal(t, "hi", req["text"])
	markup := req["reply_markup"].(map[string]any)
	rows := markup["inline_keyboard"].([]any)
	first := rows[0].([]any)[0].(map[string]any)
	assert.Equal(t, "star:01ABC", first["callback_data"])

	_, err = client.SendMessage(context.Background(), 5, "plain", nil)
	require.NoError(t, err)
	_, hasMarkup := api.requests["sendMessage"]["reply_markup"]
	assert.False(t, hasMarkup)
}

func TestEditMessage(t *testing.T) {
	api, client := newFakeAPI(t)
	api.results["editMessageText"] = true

	require.NoError(t, client.EditMessage(context.Background(), 5, 7, "new", nil))
	req := api.requests["editMessageText"]
	assert.EqualValues(t, 7, req["message_id"])
	// A nil keyboard clears the buttons.
	assert.Equal(t, map[string]any{"inline_keyboard": []any{}}, req["reply_markup"])

	api.failures["editMessageText"] = apiResponse{
		ErrorCode:   400,
		Description: "Bad Request: message is not modified",
	}
	assert.NoError(t, client.EditMessage(context.Background(), 5, 7, "new", nil))

	api.failures["editMessageText"] = apiResponse{
		ErrorCode:   400,
		Description: "Bad Request: message to edit not found",
	}
	assert.Error(t, client.EditMessage(context.Background(), 5, 7, "new", nil))
}

func TestAnswerCallbackAndDelete(t *testing.T) {
	api, client := newFakeAPI(t)
	api.results["answerCallbackQuery"] = true
	api.results["deleteMessage"] = true

	require.NoError(t, client.AnswerCallback(context.Background(), "cb-1", ""))
	_, hasText := api.requests["answerCallbackQuery"]["text"]
	assert.False(t, hasText)

	require.NoError(t, client.AnswerCallback(context.Background(), "cb-2", "Archived"))
	assert.Equal(t, "Archived", api.requests["answerCallbackQuery"]["text"])

	require.NoError(t, client.DeleteMessage(context.Background(), 5, 8))
	assert.EqualValues(t, 8, api.requests["deleteMessage"]["message_id"])
}

func TestGetFileAndDownload(t *testing.T) {
	api, client := newFakeAPI(t)
	api.results["getFile"] = File{FileID: "voice-1", FilePath: "voice/file_1.oga", FileSize: 4}
	api.files["voice/file_1.oga"] = []byte("OggS")

	f, err := client.GetFile(context.Background(), "voice-1")
	require.NoError(t, err)
	assert.Equal(t, "voice/file_1.oga", f.FilePath)

	data, err := client.DownloadFile(context.Background(), f.FilePath)
	require.NoError(t, err)
	assert.Equal(t, []byte("OggS"), data)

	_, err = client.DownloadFile(context.Background(), "voice/missing.oga")
	assert.Error(t, err)
}

func TestSetWebhook(t *testing.T) {
	api, client := newFakeAPI(t)
	api.results["setWebhook"] = true
	api.results["deleteWebhook"] = true

	require.NoError(t, client.SetWebhook(context.Background(), "https://bot.example.com/webhooks/telegram", testutil.FakeTelegramWebhookSecret))
	req := api.requests["setWebhook"]
	assert.Equal(t, "https://bot.example.com/webhooks/telegram", req["url"])
	assert.Equal(t, testutil.FakeTelegramWebhookSecret, req["secret_token"])

	require.NoError(t, client.DeleteWebhook(context.Background()))
}
