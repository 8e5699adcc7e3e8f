package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"slack-relay/project/domain"
)

// lookupBotToken は (appID, teamID) の Bot トークンを取得します
// 取得できない場合はログに残して空文字を返します
func lookupBotToken(ctx context.Context, repo domain.InstallationRepository, appID, teamID string) string {
	inst, err := repo.Get(ctx, appID, teamID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Error().Str("app_id", appID).Str("team_id", teamID).Msg("インストール情報が登録されていません")
		} else {
			log.Error().Err(err).Str("app_id", appID).Str("team_id", teamID).Msg("インストール情報取得エラー")
		}
		return ""
	}
	return inst.AccessToken
}
