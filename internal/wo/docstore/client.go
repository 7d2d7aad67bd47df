// Package docstore is the Firestore variant of the work-order persistence:
// submitted orders, the WLXX material master and the per-day counters all
// live in collections of one project.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/Tao-Zi-Liu/WoInsert/internal/config"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const datastoreScope = "https://www.googleapis.com/auth/datastore"

// NewClient 创建Firestore客户端
// 凭据优先使用 client_email + private_key，其次是凭据文件，最后是默认凭据
func NewClient(ctx context.Context, cfg config.FirestoreConfig) (*firestore.Client, error) {
	var opts []option.ClientOption
	switch {
	case cfg.ClientEmail != "" && cfg.PrivateKey != "":
		raw, err := json.Marshal(map[string]string{
			"type":         "service_account",
			"project_id":   cfg.ProjectID,
			"client_email": cfg.ClientEmail,
			"private_key":  cfg.PrivateKey,
			"token_uri":    "https://oauth2.googleapis.com/token",
		})
		if err != nil {
			return nil, fmt.Errorf("encode service account: %w", err)
		}
		creds, err := google.CredentialsFromJSON(ctx, raw, datastoreScope)
		if err != nil {
			return nil, fmt.Errorf("parse service account: %w", err)
		}
		opts = append(opts, option.WithCredentials(creds))
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := firestore.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore client: %w", err)
	}
	return client, nil
}

// isUnavailable 连接类错误：服务不可达、超时、请求被取消
func isUnavailable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled, codes.Unauthenticated:
		return true
	}
	return false
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}
