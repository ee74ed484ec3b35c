package main

import (
	"context"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"billrails/internal/biller"
	"billrails/internal/chain"
	"billrails/internal/config"
	"billrails/internal/flow"
	"billrails/internal/pricefeed"
	"billrails/internal/quote"
	"billrails/internal/server"
	"billrails/internal/session"
	"billrails/internal/store"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

func main() {
	_ = godotenv.Load()

	log := zerolog.New(os.Stderr).With().Timestamp().Logger()
	if os.Getenv("LOG_PRETTY") != "" {
		log = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config error")
	}

	ctx := context.Background()

	var exec chain.Executor
	if cfg.Chain.PrivateKey != "" {
		ethExec, err := chain.NewEthExecutor(ctx, chain.EthExecutorConfig{
			RPCURL:          cfg.Chain.RPCURL,
			PrivateKeyHex:   cfg.Chain.PrivateKey,
			ContractAddress: cfg.Deployment.Contracts.BillPayment,
			ChainID:         cfg.Deployment.ChainID,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("chain executor error")
		}
		exec = ethExec
	} else {
		log.Warn().Msg("no private key configured, using the in-memory executor")
		fake := chain.NewFakeExecutor()
		fake.Chain = big.NewInt(cfg.Deployment.ChainID)
		exec = fake
	}

	var st store.Store = store.NewMemoryStore()
	if cfg.Database.DSN != "" {
		pg, err := store.NewPostgresStore(ctx, cfg.Database.DSN)
		if err != nil {
			log.Fatal().Err(err).Msg("postgres error")
		}
		defer pg.Close()
		st = pg
	} else {
		log.Warn().Msg("no DATABASE_URL configured, purchase history is in-memory only")
	}

	sessions, err := session.Open(cfg.Service.SessionPath)
	if err != nil {
		log.Fatal().Err(err).Msg("session store error")
	}
	sess := sessions.Reconcile(exec.SenderAddress().Hex())
	log.Info().Str("wallet", sess.WalletAddress).Msg("session ready")

	var prices pricefeed.Source
	if cfg.Pricefeed.BaseURL != "" {
		prices = pricefeed.NewHTTPSource(cfg.Pricefeed.BaseURL, cfg.Pricefeed.Timeout, cfg.Pricefeed.CacheTTL)
	} else {
		log.Warn().Msg("no PRICEFEED_BASE_URL configured, quoting is disabled")
		prices = pricefeed.Static{}
	}

	billerClient := biller.New(biller.Config{
		BaseURL: cfg.Biller.BaseURL,
		Secret:  cfg.Biller.Secret,
		Timeout: cfg.Biller.Timeout,
	}, log.With().Str("component", "biller").Logger())

	engine := flow.NewEngine(flow.Config{
		ChainID: cfg.Deployment.ChainID,
		Limits:  quote.Limits{Min: cfg.Limits.MinAmount, Max: cfg.Limits.MaxAmount},
		Tokens:  cfg.Tokens(),
	}, exec, prices, billerClient, st, log.With().Str("component", "flow").Logger())

	apiServer := server.NewServer(server.Config{
		HTTPPort:      cfg.Service.HTTPPort,
		HMACSecret:    cfg.Service.HMACSecret,
		HMACClockSkew: cfg.Service.HMACClockSkew,
	}, engine, billerClient, st, exec, log.With().Str("component", "server").Logger())

	go func() {
		if err := apiServer.Start(); err != nil {
			log.Info().Err(err).Msg("server stopped")
		}
	}()

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = apiServer.Shutdown(shutdownCtx)
}
