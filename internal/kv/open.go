package kv

import (
	"context"
	"fmt"
	"io"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/fpang/storybook-illustrator/internal/config"
	"github.com/rs/zerolog/log"
)

// Open builds the backend selected by cfg. The returned closer releases
// resources held by the backend and is never nil.
func Open(ctx context.Context, cfg config.Store) (Store, io.Closer, error) {
	switch cfg.Backend {
	case config.BackendFile, "":
		s, err := NewFileStore(cfg.Dir)
		if err != nil {
			return nil, nil, err
		}
		return s, nopCloser{}, nil

	case config.BackendSQLite:
		s, err := OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil

	case config.BackendS3:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("load AWS config: %w", err)
		}
		return NewS3Store(s3.NewFromConfig(awsCfg), cfg.S3Bucket, cfg.S3Prefix), nopCloser{}, nil

	case config.BackendDynamo:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("load AWS config: %w", err)
		}
		return NewDynamoStore(dynamodb.NewFromConfig(awsCfg), cfg.DynamoTable), nopCloser{}, nil

	case config.BackendMemory:
		log.Warn().Msg("Using in-memory store; presets will not survive a restart")
		return NewMemoryStore(), nopCloser{}, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// Describe returns a short label for startup logs.
func Describe(cfg config.Store) string {
	switch cfg.Backend {
	case config.BackendFile, "":
		return "file:" + cfg.Dir
	case config.BackendSQLite:
		return "sqlite:" + cfg.SQLitePath
	case config.BackendS3:
		return "s3://" + cfg.S3Bucket + "/" + cfg.S3Prefix
	case config.BackendDynamo:
		return "dynamodb:" + cfg.DynamoTable
	default:
		return cfg.Backend
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
