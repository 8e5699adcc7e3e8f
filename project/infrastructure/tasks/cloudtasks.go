package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	cloudtasks "cloud.google.com/go/cloudtasks/apiv2"
	"cloud.google.com/go/cloudtasks/apiv2/cloudtaskspb"
	"github.com/googleapis/gax-go/v2"
	"github.com/rs/zerolog/log"

	"slack-relay/project/infrastructure/config"
	"slack-relay/project/service"
)

// taskCreator は Cloud Tasks クライアントのうち、このパッケージが使う操作です
type taskCreator interface {
	CreateTask(ctx context.Context, req *cloudtaskspb.CreateTaskRequest, opts ...gax.CallOption) (*cloudtaskspb.Task, error)
	Close() error
}

// CloudTasksClient は service.InvokerPort の Cloud Tasks 実装です（非同期ワーカー用）
// タスクを登録した時点で返り、ワーカーの完了は待ちません
type CloudTasksClient struct {
	client    taskCreator
	queueName string
	targetURL string
	audience  string // OIDC Audience (Cloud Run サービスの URL)
	svcAcct   string // Service Account メールアドレス
}

// NewCloudTasksClient は Cloud Tasks クライアントを初期化します
func NewCloudTasksClient(ctx context.Context, cfg *config.Config) (*CloudTasksClient, error) {
	client, err := cloudtasks.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("cloudtasks: クライアント初期化失敗: %w", err)
	}

	return &CloudTasksClient{
		client:    client,
		queueName: fmt.Sprintf("projects/%s/locations/%s/queues/%s", cfg.GcpProject, cfg.Region, cfg.TasksQueueAsync),
		targetURL: cfg.AsyncWorkerURL,
		audience:  cfg.TasksAudience,
		svcAcct:   cfg.TasksServiceAccount,
	}, nil
}

// Invoke は非同期ワーカー宛ての HTTP タスクをキューに登録します
// 登録に成功した場合は 202 を返します
func (ct *CloudTasksClient) Invoke(ctx context.Context, payload *service.DispatchPayload) (int, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("cloudtasks: ペイロード JSON 化失敗: %w", err)
	}

	httpReq := &cloudtaskspb.HttpRequest{
		Url:        ct.targetURL,
		HttpMethod: cloudtaskspb.HttpMethod_POST,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       payloadBytes,
	}

	// サービスアカウントが設定されている場合は OIDC トークン付きで呼び出す
	if ct.svcAcct != "" {
		httpReq.AuthorizationHeader = &cloudtaskspb.HttpRequest_OidcToken{
			OidcToken: &cloudtaskspb.OidcToken{
				ServiceAccountEmail: ct.svcAcct,
				Audience:            ct.audience,
			},
		}
	}

	req := &cloudtaskspb.CreateTaskRequest{
		Parent: ct.queueName,
		Task: &cloudtaskspb.Task{
			MessageType: &cloudtaskspb.Task_HttpRequest{HttpRequest: httpReq},
		},
	}

	task, err := ct.client.CreateTask(ctx, req)
	if err != nil {
		return 0, fmt.Errorf("cloudtasks: タスク登録失敗 (queue=%s): %w", ct.queueName, err)
	}

	log.Debug().Str("task", task.GetName()).Msg("非同期ワーカーのタスクを登録しました")

	return http.StatusAccepted, nil
}

// Close は Cloud Tasks クライアントを閉じます
func (ct *CloudTasksClient) Close() error {
	if ct.client != nil {
		return ct.client.Close()
	}
	return nil
}
