package workers

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"veridraw-backend/internal/chain"
	"veridraw-backend/internal/common/apperrors"
	"veridraw-backend/internal/common/logger"
	drawmodels "veridraw-backend/internal/features/draw/models"
	drawservice "veridraw-backend/internal/features/draw/service"
	tokenmodels "veridraw-backend/internal/features/token/models"
	tokenservice "veridraw-backend/internal/features/token/service"
	votingmodels "veridraw-backend/internal/features/voting/models"
	votingservice "veridraw-backend/internal/features/voting/service"
)

const (
	dispatchAttempts = 5
	dispatchBackoff  = 500 * time.Millisecond
)

// EventSource delivers chain events in block order. The handler's nil return
// acknowledges the event at the transport; a non-nil return leaves it for
// redelivery.
type EventSource interface {
	Run(ctx context.Context, handle func(context.Context, *chain.Event) error) error
	Close() error
}

// Reconciler translates chain events into engine commands: it deduplicates by
// transaction hash and log index, retries transient failures with bounded
// backoff, and treats domain-rule failures as terminal for that event.
type Reconciler struct {
	source    EventSource
	ledger    EventLedger
	addresses *chain.Addresses
	draws     drawservice.DrawService
	voting    votingservice.VotingService
	rewards   tokenservice.RewardService
	log       zerolog.Logger
}

func NewReconciler(
	source EventSource,
	ledger EventLedger,
	addresses *chain.Addresses,
	draws drawservice.DrawService,
	voting votingservice.VotingService,
	rewards tokenservice.RewardService,
) *Reconciler {
	return &Reconciler{
		source:    source,
		ledger:    ledger,
		addresses: addresses,
		draws:     draws,
		voting:    voting,
		rewards:   rewards,
		log:       logger.Component("reconciler"),
	}
}

// Run consumes the source until the context is cancelled.
func (r *Reconciler) Run(ctx context.Context) error {
	r.log.Info().Msg("reconciler started")
	return r.source.Run(ctx, r.Process)
}

// Process applies one event. It returns nil when the event reached a terminal
// outcome (applied, duplicate, domain-rejected or unknown) and an error only
// when the event should be redelivered.
func (r *Reconciler) Process(ctx context.Context, event *chain.Event) error {
	if err := event.Validate(); err != nil {
		r.log.Warn().Err(err).Msg("dropping malformed chain event")
		return nil
	}
	if r.addresses != nil && !r.addresses.Known(event) {
		r.log.Debug().
			Str("contract", event.Contract).
			Int64("chain_id", event.ChainID).
			Msg("dropping event from foreign contract")
		return nil
	}

	seen, err := r.ledger.Seen(ctx, event.Ref())
	if err != nil {
		return err
	}
	if seen {
		r.log.Debug().Str("ref", event.Ref()).Msg("skipping duplicate chain event")
		return nil
	}

	if err := r.dispatchWithRetry(ctx, event); err != nil {
		return err
	}

	return r.ledger.MarkApplied(ctx, event)
}

func (r *Reconciler) dispatchWithRetry(ctx context.Context, event *chain.Event) error {
	backoff := dispatchBackoff

	for attempt := 1; ; attempt++ {
		err := r.dispatch(ctx, event)
		if err == nil {
			return nil
		}

		if !apperrors.IsRetryable(err) {
			// Retrying a domain-rule failure cannot change the outcome.
			r.log.Warn().
				Err(err).
				Str("kind", string(event.Kind)).
				Str("ref", event.Ref()).
				Msg("chain event rejected by engine")
			return nil
		}
		if attempt >= dispatchAttempts {
			r.log.Error().
				Err(err).
				Str("ref", event.Ref()).
				Int("attempts", attempt).
				Msg("giving up on chain event, leaving for redelivery")
			return err
		}

		r.log.Warn().
			Err(err).
			Str("ref", event.Ref()).
			Int("attempt", attempt).
			Dur("backoff", backoff).
			Msg("transient failure, retrying chain event")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

func (r *Reconciler) dispatch(ctx context.Context, event *chain.Event) error {
	switch event.Kind {
	case chain.EventDrawCreated:
		p, err := chain.DecodeDrawCreated(event)
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeValidation, "undecodable DrawCreated payload")
		}
		input := &drawmodels.DrawCreate{
			ID:            p.DrawID,
			Name:          p.Name,
			Description:   p.Description,
			PrizePool:     p.PrizePool,
			EntryFee:      p.EntryFee,
			EntryDeadline: time.Unix(p.EntryDeadline, 0).UTC(),
			DrawTimestamp: time.Unix(p.DrawTimestamp, 0).UTC(),
			CreatorID:     p.Creator,
		}
		if p.EntryOpensAt != 0 {
			input.EntryOpensAt = time.Unix(p.EntryOpensAt, 0).UTC()
		}
		_, err = r.draws.Create(ctx, input)
		return err

	case chain.EventDrawEntered:
		p, err := chain.DecodeDrawEntered(event)
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeValidation, "undecodable DrawEntered payload")
		}
		_, err = r.draws.Enter(ctx, p.DrawID, p.Participant, p.EntryFee, event.Ref())
		return err

	case chain.EventDrawCompleted:
		p, err := chain.DecodeDrawCompleted(event)
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeValidation, "undecodable DrawCompleted payload")
		}
		_, err = r.draws.Execute(ctx, p.DrawID, p.RandomSeed)
		return err

	case chain.EventPrizeClaimed:
		p, err := chain.DecodePrizeClaimed(event)
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeValidation, "undecodable PrizeClaimed payload")
		}
		_, err = r.draws.ClaimPrize(ctx, p.DrawID, p.Winner)
		return err

	case chain.EventVoteCast:
		p, err := chain.DecodeVoteCast(event)
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeValidation, "undecodable VoteCast payload")
		}
		_, err = r.voting.CastVote(ctx, p.InitiativeID, p.Voter, p.OptionID, p.BalanceSnapshot, event.Ref())
		return err

	case chain.EventInitiativeCreated:
		p, err := chain.DecodeInitiativeCreated(event)
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeValidation, "undecodable InitiativeCreated payload")
		}
		input := &votingmodels.InitiativeCreate{
			ID:             p.InitiativeID,
			Name:           p.Name,
			Description:    p.Description,
			VotingDeadline: time.Unix(p.VotingDeadline, 0).UTC(),
			OptionTexts:    p.Options,
			CreatorID:      p.Creator,
		}
		if p.VotingOpensAt != 0 {
			input.VotingOpensAt = time.Unix(p.VotingOpensAt, 0).UTC()
		}
		_, err = r.voting.Create(ctx, input)
		return err

	case chain.EventTokenMinted:
		p, err := chain.DecodeTokenMinted(event)
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeValidation, "undecodable TokenMinted payload")
		}
		reason := tokenmodels.RewardReason(p.Reason)
		if !reason.Valid() {
			r.log.Info().
				Str("reason", p.Reason).
				Str("ref", event.Ref()).
				Msg("acknowledging mint with non-reward reason")
			return nil
		}
		_, err = r.rewards.Credit(ctx, p.Recipient, p.Amount, reason, "mint:"+event.Ref())
		return err

	default:
		// Forward compatibility: unknown kinds are acknowledged, not errors.
		r.log.Info().
			Str("kind", string(event.Kind)).
			Str("ref", event.Ref()).
			Msg("acknowledging unknown chain event kind")
		return nil
	}
}
