package domain

import (
	"context"
)

// InstallationRepository はインストール情報（Bot トークン）の永続化を担当します
type InstallationRepository interface {
	// Get は (appID, teamID) に対応するインストール情報を取得します
	// 存在しない場合は domain.ErrNotFound を返します
	Get(ctx context.Context, appID, teamID string) (*Installation, error)

	// Put はインストール情報を保存します
	// 同一キー(app:team)の既存レコードがある場合は上書きします
	// バリデーションエラー時は domain.ErrInvalid を返します
	Put(ctx context.Context, inst *Installation) error
}
