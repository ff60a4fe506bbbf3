package main

import (
	"context"
	"net/http"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/redis/go-redis/v9"

	"github.com/stanwood/contentful-proxy/pkg/cache"
	"github.com/stanwood/contentful-proxy/pkg/config"
	"github.com/stanwood/contentful-proxy/pkg/content"
	"github.com/stanwood/contentful-proxy/pkg/contentful"
	"github.com/stanwood/contentful-proxy/pkg/files"
	"github.com/stanwood/contentful-proxy/pkg/logging"
	"github.com/stanwood/contentful-proxy/pkg/mirror"
	"github.com/stanwood/contentful-proxy/pkg/storage"
	"github.com/stanwood/contentful-proxy/pkg/transform"
	"github.com/stanwood/contentful-proxy/pkg/vimeo"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONTENTFUL_PROXY_CONFIG"))
	if err != nil {
		bootLogger := logging.NewLogger("main")
		bootLogger.Fatal().Err(err).Msg("Invalid configuration")
	}

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.LogPretty,
	})
	logger := logging.NewLogger("main")

	ctx := context.Background()

	// Redis backs all three cache namespaces.
	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("Redis connection failed")
	}
	logger.Info().Str("addr", cfg.RedisAddr).Msg("Connected to Redis")

	cacheManager := cache.NewManager(redisClient)

	upstream, err := contentful.New(contentful.Config{
		Space:       cfg.ContentfulSpace,
		Token:       cfg.ContentfulToken,
		Environment: cfg.ContentfulEnvironment,
		Timeout:     cfg.UpstreamTimeout,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Contentful client setup failed")
	}

	pipeline, err := buildPipeline(cfg, cacheManager)
	if err != nil {
		logger.Fatal().Err(err).Msg("Pipeline setup failed")
	}

	contentSvc := content.NewService(upstream, cacheManager, pipeline, cfg.ContentCacheTTL)

	var mirrorSvc *mirror.Service
	var cleaner *mirror.Cleaner
	if cfg.StorageBucket != "" {
		mirrorSvc, cleaner, err = buildMirror(ctx, cfg, cacheManager)
		if err != nil {
			logger.Fatal().Err(err).Msg("Mirror setup failed")
		}
	} else {
		logger.Warn().Msg("No storage bucket configured, file mirror disabled")
	}

	var management *contentful.ManagementProxy
	if cfg.ContentfulManagementToken != "" {
		management, err = contentful.NewManagementProxy(contentful.ManagementConfig{
			Space:   cfg.ContentfulSpace,
			Token:   cfg.ContentfulManagementToken,
			Timeout: cfg.UpstreamTimeout,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("Management proxy setup failed")
		}
	} else {
		logger.Warn().Msg("No management token configured, management proxy disabled")
	}

	srv := newServer(contentSvc, upstream, noNilInterface(mirrorSvc), noNilCleaner(cleaner), noNilManagement(management), cfg.FileRetention)

	addr := ":" + cfg.Port
	logger.Info().Str("addr", addr).Str("space", cfg.ContentfulSpace).Msg("Starting Contentful proxy")

	if err := http.ListenAndServe(addr, srv); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
	}
}

// buildPipeline assembles the transformation pipeline. Without a Vimeo token
// the video stage is left out and video ids pass through untouched.
func buildPipeline(cfg config.Config, cacheManager *cache.Manager) (*transform.Pipeline, error) {
	if cfg.VimeoToken == "" {
		return transform.NewPipeline(
			transform.NewReplaceAssetLinks(cfg.ProxyHostname),
			transform.NewResolveIncludes(),
			transform.NewFlattenFields(),
			transform.RemoveIncludes{},
			transform.RemoveRootSys{},
		), nil
	}

	vimeoClient, err := vimeo.New(vimeo.Config{
		Token:   cfg.VimeoToken,
		Timeout: cfg.UpstreamTimeout,
	})
	if err != nil {
		return nil, err
	}

	return transform.Default(cfg.ProxyHostname, cacheManager, vimeoClient), nil
}

// buildMirror wires the asset mirror over S3 and DynamoDB.
func buildMirror(ctx context.Context, cfg config.Config, cacheManager *cache.Manager) (*mirror.Service, *mirror.Cleaner, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.AWSRegion),
	}
	if cfg.AWSAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKey, cfg.AWSSecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, nil, err
	}

	objectStore, err := storage.NewS3Store(s3.NewFromConfig(awsCfg), storage.Config{
		Bucket:        cfg.StorageBucket,
		Region:        cfg.AWSRegion,
		PublicBaseURL: cfg.StoragePublicURL,
	})
	if err != nil {
		return nil, nil, err
	}

	recordStore, err := files.NewStore(dynamodb.NewFromConfig(awsCfg), cfg.FilesTable)
	if err != nil {
		return nil, nil, err
	}

	mirrorSvc := mirror.NewService(objectStore, recordStore, cacheManager, mirror.Config{
		FetchTimeout: cfg.UpstreamTimeout,
	})
	cleaner := mirror.NewCleaner(objectStore, recordStore, cacheManager)

	return mirrorSvc, cleaner, nil
}

// noNilInterface keeps a nil *mirror.Service from becoming a non-nil
// interface value inside the server.
func noNilInterface(s *mirror.Service) mirrorResolver {
	if s == nil {
		return nil
	}
	return s
}

func noNilCleaner(c *mirror.Cleaner) cleanupRunner {
	if c == nil {
		return nil
	}
	return c
}

func noNilManagement(p *contentful.ManagementProxy) managementForwarder {
	if p == nil {
		return nil
	}
	return p
}
