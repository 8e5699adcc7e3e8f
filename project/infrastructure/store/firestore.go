package store

import (
	"context"
	"fmt"
	"time"

	"slack-relay/project/domain"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// isNotFound は Firestore の NotFound エラーを判定するヘルパー関数です
func isNotFound(err error) bool {
	st, ok := status.FromError(err)
	return ok && st.Code() == codes.NotFound
}

// FirestoreRepo は domain.InstallationRepository の Firestore 実装です
type FirestoreRepo struct {
	cli              *firestore.Client
	installationsCol string
}

// NewFirestoreRepo は Firestore リポジトリを初期化します
// collection はインストール情報を格納するコレクション名です
func NewFirestoreRepo(ctx context.Context, projectID, collection string) (*FirestoreRepo, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("firestore: クライアント初期化失敗: %w", err)
	}

	return &FirestoreRepo{
		cli:              client,
		installationsCol: collection,
	}, nil
}

// Get はインストール情報を取得します
func (repo *FirestoreRepo) Get(ctx context.Context, appID, teamID string) (*domain.Installation, error) {
	docID := domain.InstallationKey(appID, teamID)
	docRef := repo.cli.Collection(repo.installationsCol).Doc(docID)

	snapshot, err := docRef.Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("firestore: インストール情報取得失敗 (docID=%s): %w", docID, err)
	}

	var inst domain.Installation
	if err := snapshot.DataTo(&inst); err != nil {
		return nil, fmt.Errorf("firestore: インストール情報変換失敗 (docID=%s): %w", docID, err)
	}

	// トークンが空のレコードは未登録と同じ扱い
	if inst.AccessToken == "" {
		return nil, domain.ErrNotFound
	}

	return &inst, nil
}

// Put はインストール情報を保存します（新規作成または上書き）
func (repo *FirestoreRepo) Put(ctx context.Context, inst *domain.Installation) error {
	if err := inst.Validate(); err != nil {
		return fmt.Errorf("firestore: Put検証失敗: %w", err)
	}

	requestUTC := inst.RequestUTC
	if requestUTC.IsZero() {
		requestUTC = time.Now().UTC()
	}

	docID := domain.InstallationKey(inst.AppID, inst.TeamID)
	docRef := repo.cli.Collection(repo.installationsCol).Doc(docID)

	data := map[string]interface{}{
		"app_id":       inst.AppID,
		"team_id":      inst.TeamID,
		"access_token": inst.AccessToken,
		"request_utc":  requestUTC,
	}

	if _, err := docRef.Set(ctx, data); err != nil {
		return fmt.Errorf("firestore: インストール情報保存失敗 (docID=%s): %w", docID, err)
	}

	return nil
}

// Close は Firestore クライアントを閉じます
func (repo *FirestoreRepo) Close() error {
	if repo.cli != nil {
		return repo.cli.Close()
	}
	return nil
}
