package ctl

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/dalemusser/teamreg/internal/app/bootstrap"
	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// OpenMongo loads the dotenv file (if present), dials MongoDB and assembles
// the services the way the server does.
func OpenMongo(ctx context.Context, opts Options, log *zap.Logger) (*Env, error) {
	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", opts.EnvFile, err)
		}
	}

	appCfg := configFromEnv()
	if opts.MongoURI != "" {
		appCfg.MongoURI = opts.MongoURI
	}
	if opts.Database != "" {
		appCfg.MongoDatabase = opts.Database
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(appCfg.MongoURI).SetAppName("teamregctl"))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	db := client.Database(appCfg.MongoDatabase)

	set, pub, err := bootstrap.BuildServices(db, appCfg, nil, log)
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return &Env{
		Services: set,
		DB:       db,
		Close: func(ctx context.Context) error {
			if pub != nil {
				_ = pub.Close()
			}
			return client.Disconnect(ctx)
		},
	}, nil
}

// configFromEnv reads the subset of server settings the commands need.
func configFromEnv() bootstrap.AppConfig {
	return bootstrap.AppConfig{
		MongoURI:          env("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:     env("MONGO_DATABASE", "teamreg"),
		JWTSecret:         env("JWT_SECRET", "teamregctl-does-not-issue-credentials"),
		TeamFeePaise:      envInt("TEAM_FEE_PAISE", 50000),
		SoloFeePaise:      envInt("SOLO_FEE_PAISE", 15000),
		MaxTeamSize:       int(envInt("MAX_TEAM_SIZE", 4)),
		GatewayBaseURL:    env("GATEWAY_BASE_URL", ""),
		GatewayAppID:      env("GATEWAY_APP_ID", ""),
		GatewaySecret:     env("GATEWAY_SECRET", ""),
		GatewayAPIVersion: env("GATEWAY_API_VERSION", ""),
		BaseURL:           env("BASE_URL", "http://localhost:8080"),
	}
}

func env(key, def string) string {
	if v, ok := os.LookupEnv(bootstrap.EnvPrefix + "_" + key); ok && v != "" {
		return v
	}
	return def
}

func envInt(key string, def int64) int64 {
	v, err := strconv.ParseInt(env(key, ""), 10, 64)
	if err != nil {
		return def
	}
	return v
}
