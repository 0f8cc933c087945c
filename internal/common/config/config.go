package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Debug bool `env:"DEBUG" envDefault:"false"`

	Redis struct {
		Host     string `env:"REDIS_HOST" envDefault:"localhost"`
		Port     int    `env:"REDIS_PORT" envDefault:"6379"`
		Password string `env:"REDIS_PASSWORD" envDefault:""`
		DB       int    `env:"REDIS_DB" envDefault:"0"`
	}

	Ingest struct {
		// Source selects where chain events come from: "redis-stream" or "kafka".
		Source       string        `env:"INGEST_SOURCE" envDefault:"redis-stream"`
		Stream       string        `env:"INGEST_STREAM" envDefault:"chain:events"`
		Group        string        `env:"INGEST_GROUP" envDefault:"veridraw_reconcilers"`
		Consumer     string        `env:"INGEST_CONSUMER" envDefault:"reconciler_1"`
		BlockTimeout time.Duration `env:"INGEST_BLOCK_TIMEOUT" envDefault:"5s"`
	}

	Kafka struct {
		Brokers []string `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:9092"`
		Topic   string   `env:"KAFKA_TOPIC" envDefault:"chain-events"`
		GroupID string   `env:"KAFKA_GROUP_ID" envDefault:"veridraw-reconciler"`
	}

	Scheduler struct {
		Interval time.Duration `env:"SCHEDULER_INTERVAL" envDefault:"10s"`
	}

	Draw struct {
		// Amounts are in the smallest currency unit (wei for the original deployment).
		MinPrizePool    int64         `env:"DRAW_MIN_PRIZE_POOL" envDefault:"1000000000000000"`
		MinEntryFee     int64         `env:"DRAW_MIN_ENTRY_FEE" envDefault:"100000000000"`
		MaxEntryFee     int64         `env:"DRAW_MAX_ENTRY_FEE" envDefault:"1000000000000000000"`
		MaxDuration     time.Duration `env:"DRAW_MAX_DURATION" envDefault:"720h"`
		MaxParticipants int           `env:"DRAW_MAX_PARTICIPANTS" envDefault:"10000"` // 0 = unlimited
	}

	Voting struct {
		MinLeadTime    time.Duration `env:"VOTING_MIN_LEAD_TIME" envDefault:"1h"`
		MaxDuration    time.Duration `env:"VOTING_MAX_DURATION" envDefault:"720h"`
		MinOptions     int           `env:"VOTING_MIN_OPTIONS" envDefault:"2"`
		MaxOptions     int           `env:"VOTING_MAX_OPTIONS" envDefault:"10"`
		MinVoteBalance int64         `env:"VOTING_MIN_BALANCE" envDefault:"1"`
	}

	Rewards struct {
		DrawEntry          int64 `env:"REWARD_DRAW_ENTRY" envDefault:"10"`
		Voting             int64 `env:"REWARD_VOTING" envDefault:"5"`
		DrawWin            int64 `env:"REWARD_DRAW_WIN" envDefault:"100"`
		InitiativeCreation int64 `env:"REWARD_INITIATIVE_CREATION" envDefault:"25"`
	}

	Chain struct {
		// Contract addresses as "chainID:address" pairs, resolved once at
		// startup and injected into the ingest layer.
		DrawManagerAddrs []string `env:"CHAIN_DRAW_MANAGER_ADDRS" envSeparator:"," envDefault:"84532:0x0000000000000000000000000000000000000000"`
		VotingAddrs      []string `env:"CHAIN_VOTING_ADDRS" envSeparator:","`
		TokenAddrs       []string `env:"CHAIN_TOKEN_ADDRS" envSeparator:","`
	}
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		// Missing .env is fine; production sets variables directly.
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		panic(err)
	}

	return cfg
}

// RedisAddr returns the host:port pair for the redis client.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// ParseAddrPairs turns "chainID:address" entries into a map keyed by chain id.
func ParseAddrPairs(pairs []string) (map[int64]string, error) {
	out := make(map[int64]string, len(pairs))
	for _, pair := range pairs {
		if pair == "" {
			continue
		}
		idx := strings.IndexByte(pair, ':')
		if idx <= 0 || idx == len(pair)-1 {
			return nil, fmt.Errorf("invalid chain address pair %q", pair)
		}
		chainID, err := strconv.ParseInt(pair[:idx], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid chain id in %q: %w", pair, err)
		}
		out[chainID] = strings.ToLower(pair[idx+1:])
	}
	return out, nil
}
