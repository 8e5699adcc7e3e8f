package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slack-relay/project/domain"
)

const (
	testAppID     = "APIID123456"
	testTeamID    = "T1111111111"
	testChannelID = "C1111111111"
	testUserID    = "U2222222222"
	testTS        = "1634873264.005100"
	testBotToken  = "dummy-bot-token"
	tokenSecret   = "slack-verification-token"
	signingName   = "slack-signing-secret"
)

type dispatcherFixture struct {
	installs *fakeInstallations
	secrets  *fakeSecrets
	chat     *fakeChat
	invoker  *fakeInvoker
	opts     DispatcherOptions
}

func newFixture() *dispatcherFixture {
	return &dispatcherFixture{
		installs: &fakeInstallations{tokens: map[string]string{
			domain.InstallationKey(testAppID, testTeamID):        testBotToken,
			domain.InstallationKey("invalid-app-id", testTeamID): testBotToken,
			domain.InstallationKey(testAppID, "invalid-team-id"): testBotToken,
		}},
		secrets: &fakeSecrets{values: map[string]string{tokenSecret: "dummy-token"}},
		chat:    &fakeChat{},
		invoker: &fakeInvoker{status: http.StatusAccepted},
		opts: DispatcherOptions{
			AllowList: domain.NewAllowList(testAppID,
				[]string{testTeamID, "T2222222222"},
				[]string{testChannelID, "C2222222222"}),
			VerificationTokenSecret: tokenSecret,
		},
	}
}

func (f *dispatcherFixture) dispatch(t *testing.T, body []byte) Response {
	t.Helper()
	d := NewDispatcher(f.opts, f.installs, f.secrets, f.chat, f.invoker)
	return d.Dispatch(context.Background(), &Inbound{Header: http.Header{}, Body: body})
}

// mentionBody は app_mention イベントの webhook 本文を作成します
func mentionBody(t *testing.T, overrides map[string]interface{}, channel string, elements ...map[string]interface{}) []byte {
	t.Helper()
	if elements == nil {
		elements = []map[string]interface{}{
			{"type": "user", "user_id": "UB111111111"},
			{"type": "text", "text": " what\nline 2\nline 3"},
		}
	}
	data := map[string]interface{}{
		"token":      "dummy-token",
		"team_id":    testTeamID,
		"api_app_id": testAppID,
		"type":       "event_callback",
		"event": map[string]interface{}{
			"type":    "app_mention",
			"text":    "<@UB111111111>",
			"user":    testUserID,
			"ts":      testTS,
			"team":    testTeamID,
			"channel": channel,
			"blocks": []map[string]interface{}{
				{
					"type":     "rich_text",
					"block_id": "Cj64",
					"elements": []map[string]interface{}{
						{"type": "rich_text_section", "elements": elements},
					},
				},
			},
			"event_ts": testTS,
		},
		"event_id":   "Ev02JGDEJTCN",
		"event_time": 1634873264,
	}
	for k, v := range overrides {
		data[k] = v
	}
	body, err := json.Marshal(data)
	require.NoError(t, err)
	return body
}

func TestDispatch_Challenge(t *testing.T) {
	f := newFixture()

	resp := f.dispatch(t, []byte(`{"token":"x","challenge":"3eZbrw1aBm2rZgRNFdxV2595E9CY3gmdALWMmHkvFXO7tYXAYM8P","type":"url_verification"}`))

	assert.Equal(t, Response{StatusCode: http.StatusOK, Body: "3eZbrw1aBm2rZgRNFdxV2595E9CY3gmdALWMmHkvFXO7tYXAYM8P"}, resp)
	assert.Empty(t, f.installs.calls)
	assert.Empty(t, f.chat.posts)
	assert.Empty(t, f.invoker.payloads)
}

func TestDispatch_AllGood(t *testing.T) {
	f := newFixture()

	resp := f.dispatch(t, mentionBody(t, nil, testChannelID))

	assert.Equal(t, Response{StatusCode: http.StatusOK}, resp)
	assert.Equal(t, []getCall{{appID: testAppID, teamID: testTeamID}}, f.installs.calls)
	require.Len(t, f.invoker.payloads, 1)
	assert.Equal(t, DispatchPayload{
		AppID:     testAppID,
		ChannelID: testChannelID,
		TeamID:    testTeamID,
		Text:      " what\nline 2\nline 3",
		TS:        testTS,
		UserID:    testUserID,
	}, f.invoker.payloads[0])
	assert.Empty(t, f.chat.posts)
}

func TestDispatch_NoText(t *testing.T) {
	f := newFixture()

	body := mentionBody(t, nil, testChannelID, map[string]interface{}{"type": "user", "user_id": "UB111111111"})
	resp := f.dispatch(t, body)

	assert.Equal(t, Response{StatusCode: http.StatusOK}, resp)
	assert.Empty(t, f.invoker.payloads)
	assert.Equal(t, []post{{
		token:    testBotToken,
		channel:  testChannelID,
		threadTS: testTS,
		text:     "Hello <@U2222222222>!",
	}}, f.chat.posts)
}

func TestDispatch_NoBotToken(t *testing.T) {
	f := newFixture()
	f.installs.tokens = map[string]string{}

	resp := f.dispatch(t, mentionBody(t, nil, testChannelID))

	assert.Equal(t, Response{StatusCode: http.StatusOK}, resp)
	assert.Equal(t, []getCall{{appID: testAppID, teamID: testTeamID}}, f.installs.calls)
	assert.Empty(t, f.chat.posts)
}

func TestDispatch_NoBotTokenAuthFailure(t *testing.T) {
	f := newFixture()
	f.installs.err = errors.New("firestore unavailable")

	resp := f.dispatch(t, mentionBody(t, map[string]interface{}{"token": "invalid-token"}, testChannelID))

	assert.Equal(t, Response{StatusCode: http.StatusOK}, resp)
	assert.Empty(t, f.chat.posts)
	assert.Empty(t, f.invoker.payloads)
}

func TestDispatch_InvalidToken(t *testing.T) {
	f := newFixture()

	resp := f.dispatch(t, mentionBody(t, map[string]interface{}{"token": "invalid-token"}, testChannelID))

	assert.Equal(t, Response{StatusCode: http.StatusOK}, resp)
	assert.Empty(t, f.invoker.payloads)
	assert.Equal(t, []post{{
		token:    testBotToken,
		channel:  testChannelID,
		threadTS: testTS,
		text:     "Sorry <@U2222222222>, an authentication error occurred. Please contact your admin.",
	}}, f.chat.posts)
}

func TestDispatch_ParameterStoreError(t *testing.T) {
	f := newFixture()
	f.secrets.err = errors.New("secret manager unavailable")

	resp := f.dispatch(t, mentionBody(t, nil, testChannelID))

	assert.Equal(t, Response{StatusCode: http.StatusOK}, resp)
	assert.Empty(t, f.invoker.payloads)
	require.Len(t, f.chat.posts, 1)
	assert.Equal(t, "Sorry <@U2222222222>, an authentication error occurred. Please contact your admin.", f.chat.posts[0].text)
}

func TestDispatch_Unauthorized(t *testing.T) {
	tests := []struct {
		name      string
		overrides map[string]interface{}
		channel   string
		wantCall  getCall
		want      post
	}{
		{
			name:      "invalid app id",
			overrides: map[string]interface{}{"api_app_id": "invalid-app-id"},
			channel:   testChannelID,
			wantCall:  getCall{appID: "invalid-app-id", teamID: testTeamID},
			want: post{
				token: testBotToken, channel: testChannelID, threadTS: testTS,
				text: "Sorry <@U2222222222>, this app does not support this app ID invalid-app-id.",
			},
		},
		{
			name:      "invalid team id",
			overrides: map[string]interface{}{"team_id": "invalid-team-id"},
			channel:   testChannelID,
			wantCall:  getCall{appID: testAppID, teamID: "invalid-team-id"},
			want: post{
				token: testBotToken, channel: testChannelID, threadTS: testTS,
				text: "Sorry <@U2222222222>, this app does not support this team ID invalid-team-id.",
			},
		},
		{
			name:     "invalid channel id",
			channel:  "invalid-channel-id",
			wantCall: getCall{appID: testAppID, teamID: testTeamID},
			want: post{
				token: testBotToken, channel: "invalid-channel-id", threadTS: testTS,
				text: "Sorry <@U2222222222>, this app does not support this channel ID invalid-channel-id.",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()

			resp := f.dispatch(t, mentionBody(t, tt.overrides, tt.channel))

			assert.Equal(t, Response{StatusCode: http.StatusOK}, resp)
			assert.Equal(t, []getCall{tt.wantCall}, f.installs.calls)
			assert.Equal(t, []post{tt.want}, f.chat.posts)
			assert.Empty(t, f.invoker.payloads)
		})
	}
}

func TestDispatch_InvokeRejected(t *testing.T) {
	tests := []struct {
		name   string
		status int
		err    error
	}{
		{"transport error", 0, errors.New("queue not found")},
		{"non-success status", http.StatusInternalServerError, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.invoker.status = tt.status
			f.invoker.err = tt.err

			resp := f.dispatch(t, mentionBody(t, nil, testChannelID))

			assert.Equal(t, Response{StatusCode: http.StatusOK}, resp)
			require.Len(t, f.invoker.payloads, 1)
			require.Len(t, f.chat.posts, 1)
			assert.Equal(t,
				"<@U2222222222>, your request ( what\nline 2\nline 3) cannot be processed at the moment. Please try again later.",
				f.chat.posts[0].text)
		})
	}
}

func TestDispatch_InvokeDeadlineStillNotifies(t *testing.T) {
	f := newFixture()
	invoker := &blockingInvoker{}
	d := NewDispatcher(f.opts, f.installs, f.secrets, f.chat, invoker)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	resp := d.Dispatch(ctx, &Inbound{Header: http.Header{}, Body: mentionBody(t, nil, testChannelID)})

	assert.Equal(t, Response{StatusCode: http.StatusOK}, resp)
	assert.Equal(t, 1, invoker.calls)
	require.Len(t, f.chat.posts, 1)
	assert.Equal(t, post{
		token:    testBotToken,
		channel:  testChannelID,
		threadTS: testTS,
		text:     "<@U2222222222>, your request ( what\nline 2\nline 3) cannot be processed at the moment. Please try again later.",
	}, f.chat.posts[0])
}

func TestDispatch_InvokeAcceptedStatuses(t *testing.T) {
	for _, status := range []int{http.StatusOK, http.StatusCreated, http.StatusAccepted} {
		t.Run(fmt.Sprint(status), func(t *testing.T) {
			f := newFixture()
			f.invoker.status = status

			f.dispatch(t, mentionBody(t, nil, testChannelID))

			assert.Len(t, f.invoker.payloads, 1)
			assert.Empty(t, f.chat.posts)
		})
	}
}

func TestDispatch_LocalMode(t *testing.T) {
	f := newFixture()
	f.opts.LocalMode = true
	f.secrets.err = errors.New("no credentials")

	body := mentionBody(t, map[string]interface{}{"token": "anything"}, testChannelID)
	resp := f.dispatch(t, body)

	assert.Equal(t, Response{StatusCode: http.StatusOK}, resp)
	assert.Len(t, f.invoker.payloads, 1)

	noText := mentionBody(t, nil, testChannelID, map[string]interface{}{"type": "user", "user_id": "UB111111111"})
	f.dispatch(t, noText)
	assert.Empty(t, f.chat.posts)
}

func TestDispatch_MalformedBody(t *testing.T) {
	f := newFixture()

	resp := f.dispatch(t, []byte(`{not json`))

	assert.Equal(t, Response{StatusCode: http.StatusOK}, resp)
	assert.Empty(t, f.installs.calls)
	assert.Empty(t, f.chat.posts)
	assert.Empty(t, f.invoker.payloads)
}

func TestDispatch_MissingEvent(t *testing.T) {
	f := newFixture()

	resp := f.dispatch(t, []byte(`{"token":"dummy-token","team_id":"T1111111111","api_app_id":"APIID123456","type":"event_callback"}`))

	assert.Equal(t, Response{StatusCode: http.StatusOK}, resp)
	assert.Empty(t, f.chat.posts)
	assert.Empty(t, f.invoker.payloads)
}

func signedHeader(secret string, body []byte) http.Header {
	ts := fmt.Sprintf("%d", time.Now().Unix())
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("v0:%s:%s", ts, body)))

	h := http.Header{}
	h.Set("X-Slack-Request-Timestamp", ts)
	h.Set("X-Slack-Signature", "v0="+hex.EncodeToString(mac.Sum(nil)))
	return h
}

func TestDispatch_SigningSecret(t *testing.T) {
	f := newFixture()
	f.opts.SigningSecretName = signingName
	f.secrets.values[signingName] = "test-signing-secret"
	d := NewDispatcher(f.opts, f.installs, f.secrets, f.chat, f.invoker)
	body := mentionBody(t, nil, testChannelID)

	d.Dispatch(context.Background(), &Inbound{Header: signedHeader("test-signing-secret", body), Body: body})
	assert.Len(t, f.invoker.payloads, 1)
	assert.Empty(t, f.chat.posts)

	d.Dispatch(context.Background(), &Inbound{Header: signedHeader("wrong-secret", body), Body: body})
	assert.Len(t, f.invoker.payloads, 1)
	require.Len(t, f.chat.posts, 1)
	assert.Equal(t, "Sorry <@U2222222222>, an authentication error occurred. Please contact your admin.", f.chat.posts[0].text)
}
