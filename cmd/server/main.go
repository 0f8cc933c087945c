package main

import (
	"context"
	"os/signal"
	"syscall"

	goredis "github.com/redis/go-redis/v9"

	"veridraw-backend/internal/chain"
	"veridraw-backend/internal/common/config"
	"veridraw-backend/internal/common/logger"
	drawmodels "veridraw-backend/internal/features/draw/models"
	drawredis "veridraw-backend/internal/features/draw/repository/redis"
	drawservice "veridraw-backend/internal/features/draw/service"
	tokenmodels "veridraw-backend/internal/features/token/models"
	tokenredis "veridraw-backend/internal/features/token/repository/redis"
	tokenservice "veridraw-backend/internal/features/token/service"
	votingmodels "veridraw-backend/internal/features/voting/models"
	votingredis "veridraw-backend/internal/features/voting/repository/redis"
	votingservice "veridraw-backend/internal/features/voting/service"
	"veridraw-backend/internal/platform/redis"
	"veridraw-backend/internal/workers"
)

func main() {
	cfg := config.Load()
	logger.Init("veridraw-backend", cfg.Debug)

	client, err := redis.New(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer client.Close()

	addresses, err := loadAddresses(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid chain address configuration")
	}

	drawRepo := drawredis.NewDrawRepository(client)
	votingRepo := votingredis.NewVotingRepository(client)
	tokenRepo := tokenredis.NewTokenRepository(client)

	rewardSvc := tokenservice.NewRewardService(tokenRepo, tokenmodels.Schedule{
		tokenmodels.ReasonDrawEntry:          cfg.Rewards.DrawEntry,
		tokenmodels.ReasonVoting:             cfg.Rewards.Voting,
		tokenmodels.ReasonDrawWin:            cfg.Rewards.DrawWin,
		tokenmodels.ReasonInitiativeCreation: cfg.Rewards.InitiativeCreation,
	})
	drawSvc := drawservice.NewDrawService(drawRepo, rewardSvc, drawmodels.DrawLimits{
		MinPrizePool:    cfg.Draw.MinPrizePool,
		MinEntryFee:     cfg.Draw.MinEntryFee,
		MaxEntryFee:     cfg.Draw.MaxEntryFee,
		MaxDuration:     cfg.Draw.MaxDuration,
		MaxParticipants: cfg.Draw.MaxParticipants,
	})
	votingSvc := votingservice.NewVotingService(votingRepo, rewardSvc, votingmodels.VotingLimits{
		MinLeadTime:    cfg.Voting.MinLeadTime,
		MaxDuration:    cfg.Voting.MaxDuration,
		MinOptions:     cfg.Voting.MinOptions,
		MaxOptions:     cfg.Voting.MaxOptions,
		MinVoteBalance: cfg.Voting.MinVoteBalance,
	})
	source := newEventSource(cfg, client)
	defer source.Close()

	reconciler := workers.NewReconciler(
		source,
		workers.NewRedisEventLedger(client),
		addresses,
		drawSvc,
		votingSvc,
		rewardSvc,
	)
	scheduler := workers.NewScheduler(
		cfg.Scheduler.Interval,
		workers.NewCryptoSeedSource(),
		drawSvc,
		drawRepo,
		votingSvc,
		votingRepo,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() { errCh <- reconciler.Run(ctx) }()
	go func() { errCh <- scheduler.Run(ctx) }()

	logger.Info().Str("ingest_source", cfg.Ingest.Source).Msg("veridraw backend started")

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("worker exited")
		}
	}

	stop()
	logger.Info().Msg("veridraw backend stopped")
}

func loadAddresses(cfg *config.Config) (*chain.Addresses, error) {
	drawAddrs, err := config.ParseAddrPairs(cfg.Chain.DrawManagerAddrs)
	if err != nil {
		return nil, err
	}
	votingAddrs, err := config.ParseAddrPairs(cfg.Chain.VotingAddrs)
	if err != nil {
		return nil, err
	}
	tokenAddrs, err := config.ParseAddrPairs(cfg.Chain.TokenAddrs)
	if err != nil {
		return nil, err
	}
	return &chain.Addresses{
		DrawManager: drawAddrs,
		Voting:      votingAddrs,
		Token:       tokenAddrs,
	}, nil
}

func newEventSource(cfg *config.Config, client *goredis.Client) workers.EventSource {
	if cfg.Ingest.Source == "kafka" {
		return workers.NewKafkaSource(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID)
	}
	return workers.NewRedisStreamSource(client, cfg.Ingest.Stream, cfg.Ingest.Group, cfg.Ingest.Consumer, cfg.Ingest.BlockTimeout)
}
