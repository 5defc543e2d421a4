package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	ci "github.com/aws/aws-sdk-go-v2/service/cognitoidentity"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/rs/zerolog"

	"github.com/nhle/shared-lists/internal/auth"
	"github.com/nhle/shared-lists/internal/credential"
	"github.com/nhle/shared-lists/internal/identity"
	"github.com/nhle/shared-lists/internal/kv"
	"github.com/nhle/shared-lists/internal/model"
	"github.com/nhle/shared-lists/internal/store"
)

// runtime holds the backends built from one AppConfig.
type runtime struct {
	cfg *model.AppConfig
	log zerolog.Logger

	aws     aws.Config
	table   kv.Table
	dir     identity.Directory
	shared  *store.ListStore
	closers []func() error

	userPool     *cip.Client
	identityPool *ci.Client
}

func newRuntime(ctx context.Context, cfg *model.AppConfig, log zerolog.Logger) (*runtime, error) {
	rt := &runtime{cfg: cfg, log: log}

	if cfg.Store.Backend == model.BackendDynamoDB || cfg.Identity.Directory == model.DirectoryCognito {
		awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Store.Region))
		if err != nil {
			return nil, fmt.Errorf("loading AWS config: %w", err)
		}
		rt.aws = awsCfg
		rt.userPool = cip.NewFromConfig(awsCfg, func(o *cip.Options) { o.Region = cfg.Identity.Region })
		rt.identityPool = ci.NewFromConfig(awsCfg, func(o *ci.Options) { o.Region = cfg.Identity.Region })
	}

	switch cfg.Store.Backend {
	case model.BackendSQLite:
		path := cfg.Store.SQLitePath
		if path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, fmt.Errorf("creating data directory: %w", err)
			}
		}
		tbl, err := kv.NewSQLiteTable(path)
		if err != nil {
			return nil, err
		}
		rt.table = tbl
		rt.closers = append(rt.closers, tbl.Close)
	default:
		rt.table = kv.NewDynamoTable(rt.dynamoClient(rt.aws), cfg.Store.Table)
	}

	switch cfg.Identity.Directory {
	case model.DirectoryStatic:
		rt.dir = identity.NewStaticDirectory(cfg.Identity.Users)
	default:
		rt.dir = identity.NewCognitoDirectory(rt.userPool, cfg.Identity.UserPoolID)
	}

	rt.shared = rt.newStore(rt.table)
	log.Debug().
		Str("backend", cfg.Store.Backend).
		Str("directory", cfg.Identity.Directory).
		Msg("backends ready")
	return rt, nil
}

func (rt *runtime) dynamoClient(awsCfg aws.Config) *dynamodb.Client {
	endpoint := rt.cfg.Store.Endpoint
	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
}

func (rt *runtime) newStore(table kv.Table) *store.ListStore {
	return store.NewListStore(table, identity.NewResolver(rt.dir),
		store.WithLogger(rt.log.With().Str("component", "store").Logger()),
		store.WithBatchConcurrency(rt.cfg.Store.BatchConcurrency),
	)
}

// storeFor returns a store whose table access is scoped to the owner of
// idToken when an identity pool is configured, and the shared store
// otherwise.
func (rt *runtime) storeFor(_ context.Context, idToken string) (store.Store, error) {
	id := rt.cfg.Identity
	if idToken == "" || id.IdentityPoolID == "" || rt.cfg.Store.Backend != model.BackendDynamoDB {
		return rt.shared, nil
	}
	if id.UserPoolID == "" {
		return nil, errors.New("identity.user_pool_id is required with an identity pool")
	}

	scoped := auth.ScopedConfig(rt.aws, rt.identityPool, id.IdentityPoolID, auth.LoginProvider(id.Region, id.UserPoolID), idToken)
	return rt.newStore(kv.NewDynamoTable(rt.dynamoClient(scoped), rt.cfg.Store.Table)), nil
}

// caller returns the acting user id and, when signed in, the id token.
func (rt *runtime) caller(ctx context.Context, userFlag string) (userID, idToken string, err error) {
	if userFlag != "" {
		userID, err = identity.NewResolver(rt.dir).Resolve(ctx, userFlag)
		if errors.Is(err, identity.ErrUserNotFound) {
			return "", "", fmt.Errorf("no user matches %q", userFlag)
		}
		return userID, "", err
	}

	_, idToken, err = credential.LoadSession()
	if errors.Is(err, credential.ErrNotLoggedIn) {
		return "", "", errors.New(`not signed in: run "shoplist login" or pass --user`)
	}
	if err != nil {
		return "", "", err
	}

	claims, err := auth.ParseUnverified(idToken)
	if err != nil {
		return "", "", fmt.Errorf("reading stored session: %w", err)
	}
	return claims.Subject, idToken, nil
}

// callerStore resolves the acting user and the store to act through.
func (rt *runtime) callerStore(ctx context.Context, userFlag string) (string, store.Store, error) {
	userID, idToken, err := rt.caller(ctx, userFlag)
	if err != nil {
		return "", nil, err
	}
	st, err := rt.storeFor(ctx, idToken)
	if err != nil {
		return "", nil, err
	}
	return userID, st, nil
}

// Close releases local resources.
func (rt *runtime) Close() error {
	var errs []error
	for _, c := range rt.closers {
		errs = append(errs, c())
	}
	rt.closers = nil
	return errors.Join(errs...)
}

// jwksURL returns the configured key set URL, or the user pool's.
func jwksURL(cfg *model.AppConfig) string {
	if cfg.Auth.JWKSURL != "" {
		return cfg.Auth.JWKSURL
	}
	if cfg.Identity.UserPoolID == "" {
		return ""
	}
	return fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s/.well-known/jwks.json", cfg.Identity.Region, cfg.Identity.UserPoolID)
}
