package service

import (
	"context"
	"errors"

	"slack-relay/project/domain"
)

type getCall struct {
	appID  string
	teamID string
}

type fakeInstallations struct {
	tokens map[string]string
	err    error
	calls  []getCall
}

func (f *fakeInstallations) Get(ctx context.Context, appID, teamID string) (*domain.Installation, error) {
	f.calls = append(f.calls, getCall{appID: appID, teamID: teamID})
	if f.err != nil {
		return nil, f.err
	}
	token, ok := f.tokens[domain.InstallationKey(appID, teamID)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &domain.Installation{AppID: appID, TeamID: teamID, AccessToken: token}, nil
}

func (f *fakeInstallations) Put(ctx context.Context, inst *domain.Installation) error {
	return errors.New("read only")
}

type fakeSecrets struct {
	values map[string]string
	err    error
}

func (f *fakeSecrets) GetSecret(ctx context.Context, name string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	v, ok := f.values[name]
	if !ok {
		return "", errors.New("secret not found: " + name)
	}
	return v, nil
}

type post struct {
	token    string
	channel  string
	threadTS string
	text     string
}

type fakeChat struct {
	posts []post
	err   error
}

func (f *fakeChat) PostThreadMessage(ctx context.Context, token, channelID, threadTS, text string) error {
	// 実際の HTTP クライアントと同じく、終了したコンテキストでは送信しない
	if err := ctx.Err(); err != nil {
		return err
	}
	f.posts = append(f.posts, post{token: token, channel: channelID, threadTS: threadTS, text: text})
	return f.err
}

type fakeInvoker struct {
	payloads []DispatchPayload
	status   int
	err      error
}

func (f *fakeInvoker) Invoke(ctx context.Context, payload *DispatchPayload) (int, error) {
	f.payloads = append(f.payloads, *payload)
	return f.status, f.err
}

// blockingInvoker はコンテキストが終了するまで応答しないワーカー呼び出しです
type blockingInvoker struct {
	calls int
}

func (b *blockingInvoker) Invoke(ctx context.Context, payload *DispatchPayload) (int, error) {
	b.calls++
	<-ctx.Done()
	return 0, ctx.Err()
}
