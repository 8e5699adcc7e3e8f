package domain

import (
	"fmt"
	"strings"
	"time"
)

// Installation は Slack アプリのインストール単位（アプリ×ワークスペース）の認証情報です
type Installation struct {
	// AppID は Slack アプリの ID
	AppID string `firestore:"app_id"`

	// TeamID は Slack ワークスペースの ID
	TeamID string `firestore:"team_id"`

	// AccessToken は Bot トークン（xoxb-）
	AccessToken string `firestore:"access_token"`

	// RequestUTC はレコードの書き込み日時
	RequestUTC time.Time `firestore:"request_utc"`
}

// InstallationKey はインストール情報の一意キーを生成します
// 形式: "app:team"
func InstallationKey(appID, teamID string) string {
	return fmt.Sprintf("%s:%s", appID, teamID)
}

// Validate は Installation の必須項目を検証します
func (i Installation) Validate() error {
	if strings.TrimSpace(i.AppID) == "" {
		return fmt.Errorf("%w: AppIDは必須項目です", ErrInvalid)
	}
	if strings.TrimSpace(i.TeamID) == "" {
		return fmt.Errorf("%w: TeamIDは必須項目です", ErrInvalid)
	}
	if strings.TrimSpace(i.AccessToken) == "" {
		return fmt.Errorf("%w: AccessTokenは必須項目です", ErrInvalid)
	}
	return nil
}

// AllowList は呼び出し元として許可されたアプリ・ワークスペース・チャンネルの集合です
// 起動時に設定から構築し、以後変更しません
type AllowList struct {
	appID      string
	teamIDs    map[string]struct{}
	channelIDs map[string]struct{}
}

// NewAllowList は AllowList を作成します
func NewAllowList(appID string, teamIDs, channelIDs []string) AllowList {
	return AllowList{
		appID:      appID,
		teamIDs:    toSet(teamIDs),
		channelIDs: toSet(channelIDs),
	}
}

// Authorize は app → team → channel の順で検証し、最初に不一致となった項目を返します
// すべて許可されている場合は空文字を返します
func (a AllowList) Authorize(appID, teamID, channelID string) string {
	if appID != a.appID {
		return fmt.Sprintf("app ID %s", appID)
	}
	if _, ok := a.teamIDs[teamID]; !ok {
		return fmt.Sprintf("team ID %s", teamID)
	}
	if _, ok := a.channelIDs[channelID]; !ok {
		return fmt.Sprintf("channel ID %s", channelID)
	}
	return ""
}

// SplitIDs はカンマ区切りの ID 一覧を分割し、前後の空白を除去します
func SplitIDs(s string) []string {
	var ids []string
	for _, id := range strings.Split(s, ",") {
		ids = append(ids, strings.TrimSpace(id))
	}
	return ids
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
