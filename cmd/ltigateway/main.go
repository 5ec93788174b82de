// Command ltigateway runs an LTI 1.3 authentication gateway configured from
// the environment and a YAML registration file.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ggoodman/lti1p3-go/accesstoken"
	"github.com/ggoodman/lti1p3-go/auth"
	"github.com/ggoodman/lti1p3-go/config"
	"github.com/ggoodman/lti1p3-go/firewall"
	"github.com/ggoodman/lti1p3-go/jwks"
	"github.com/ggoodman/lti1p3-go/nonce"
	"github.com/ggoodman/lti1p3-go/nonce/memory"
	"github.com/ggoodman/lti1p3-go/nonce/redis"
	"github.com/ggoodman/lti1p3-go/registration"
	"github.com/ggoodman/lti1p3-go/service"
	"github.com/ggoodman/lti1p3-go/validation"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, err := config.LoadEnv()
	if err != nil {
		return err
	}
	log, err := newLogger(env)
	if err != nil {
		return err
	}

	file, err := config.Load(env.ConfigFile)
	if err != nil {
		return err
	}
	keyChains, err := file.BuildKeyChains()
	if err != nil {
		return err
	}
	repo, err := file.BuildRegistrations(keyChains)
	if err != nil {
		return err
	}
	zones, err := file.BuildZones()
	if err != nil {
		return err
	}
	keyring, err := registration.NewKeyring(ctx, repo)
	if err != nil {
		return err
	}

	var nonces nonce.Store = memory.New()
	if env.RedisAddr != "" {
		if nonces, err = redis.New(ctx, redis.Config{RedisAddr: env.RedisAddr}); err != nil {
			return err
		}
	}
	defer nonces.Close()

	validator := validation.NewValidator(repo, keyring,
		validation.WithNonceStore(nonces),
		validation.WithLeeway(env.Leeway),
	)

	authZones := make([]auth.Zone, 0, len(zones))
	authenticators := make([]auth.Authenticator, 0, len(zones))
	for _, z := range zones {
		authZones = append(authZones, z.Zone)
		switch z.Kind {
		case auth.KindToolMessage:
			authenticators = append(authenticators, auth.NewToolMessageAuthenticator(z.Zone, validator))
		case auth.KindPlatformMessage:
			authenticators = append(authenticators, auth.NewPlatformMessageAuthenticator(z.Zone, validator))
		case auth.KindService:
			authenticators = append(authenticators, auth.NewServiceAuthenticator(z.Zone, validator))
		}
	}
	fw, err := firewall.New(authZones, authenticators, firewall.WithLogger(log), firewall.WithRealm(env.Realm))
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("GET /.well-known/jwks/{"+jwks.PathValue+"}", jwks.NewHandler(jwks.NewExporter(keyChains)))
	mux.Handle("POST /auth/{"+accesstoken.KeyChainPathValue+"}/token", accesstoken.NewHandler(
		repo, keyChains, keyring,
		accesstoken.NewIssuer(accesstoken.WithTTL(env.AccessTokenTTL)),
		file.Scopes, nonces,
		accesstoken.WithLogger(log),
		accesstoken.WithLeeway(env.Leeway),
	))
	for _, z := range zones {
		if z.Kind != auth.KindService {
			continue
		}
		prefix := strings.TrimSuffix(z.PathPrefix, "/")
		if prefix == "" {
			log.Warn("service.mount.skip", slog.String("zone", z.Name))
			continue
		}
		h := fw.Middleware(service.NewHTTPHandler(identityService{}, service.WithLogger(log)))
		mux.Handle(prefix, h)
		mux.Handle(prefix+"/", h)
	}
	mux.Handle("/", fw.Middleware(http.HandlerFunc(serveIdentity)))

	srv := &http.Server{
		Addr:              env.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http.listen", slog.String("addr", env.ListenAddr), slog.Int("registrations", len(repo.FindAll())), slog.Int("zones", len(zones)))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("http.shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newLogger(env config.Env) (*slog.Logger, error) {
	lvl, err := env.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch env.LogFormat {
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	default:
		return nil, fmt.Errorf("config: invalid log format %q", env.LogFormat)
	}
}
