package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/craftmarket/api/internal/domain"
	"github.com/craftmarket/api/internal/repositories"
)

const (
	quoteEventCreated      = "quote.created"
	quoteEventResponded    = "quote.responded"
	quoteEventMessageAdded = "quote.message.added"
	quoteEventCancelled    = "quote.cancelled"
	quoteEventCompleted    = "quote.completed"

	quoteIDPrefix        = "qte_"
	quoteMessageIDPrefix = "qmg_"

	defaultQuoteExpiryWindow = 7 * 24 * time.Hour
)

var (
	// ErrQuoteInvalidInput signals the caller provided invalid data.
	ErrQuoteInvalidInput = errors.New("quote: invalid input")
	// ErrQuoteNotFound indicates the quote could not be located.
	ErrQuoteNotFound = errors.New("quote: not found")
	// ErrQuoteForbidden indicates the actor is not a participant or lacks the role for the action.
	ErrQuoteForbidden = errors.New("quote: forbidden")
	// ErrQuoteInvalidState indicates the quote status does not permit the action.
	ErrQuoteInvalidState = errors.New("quote: invalid state")
	// ErrQuoteConflict indicates concurrent modification or duplicates.
	ErrQuoteConflict = errors.New("quote: conflict")
)

// QuoteServiceDeps bundles collaborators required to construct the quote service.
type QuoteServiceDeps struct {
	Quotes       repositories.QuoteRepository
	Products     repositories.ProductRepository
	Users        repositories.UserRepository
	UnitOfWork   repositories.UnitOfWork
	Clock        func() time.Time
	IDGenerator  func() string
	Events       NotificationPublisher
	Logger       func(ctx context.Context, event string, fields map[string]any)
	ExpiryWindow time.Duration
}

type quoteService struct {
	quotes     repositories.QuoteRepository
	products   repositories.ProductRepository
	users      repositories.UserRepository
	unitOfWork repositories.UnitOfWork
	clock      func() time.Time
	newID      func() string
	events     NotificationPublisher
	logger     func(context.Context, string, map[string]any)
	expiry     time.Duration
}

// NewQuoteService wires dependencies into a concrete QuoteService implementation.
func NewQuoteService(deps QuoteServiceDeps) (QuoteService, error) {
	if deps.Quotes == nil {
		return nil, errors.New("quote service: quote repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("quote service: product repository is required")
	}
	if deps.Users == nil {
		return nil, errors.New("quote service: user repository is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	expiry := deps.ExpiryWindow
	if expiry <= 0 {
		expiry = defaultQuoteExpiryWindow
	}

	return &quoteService{
		quotes:     deps.Quotes,
		products:   deps.Products,
		users:      deps.Users,
		unitOfWork: unit,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		events: deps.Events,
		logger: logger,
		expiry: expiry,
	}, nil
}

func (s *quoteService) Create(ctx context.Context, cmd CreateQuoteCommand) (QuoteRequest, error) {
	actorID := strings.TrimSpace(cmd.ActorID)
	productID := strings.TrimSpace(cmd.ProductID)
	specs := strings.TrimSpace(cmd.Specifications)

	if actorID == "" {
		return QuoteRequest{}, fmt.Errorf("%w: actor id is required", ErrQuoteInvalidInput)
	}
	if productID == "" {
		return QuoteRequest{}, fmt.Errorf("%w: product id is required", ErrQuoteInvalidInput)
	}
	if specs == "" {
		return QuoteRequest{}, fmt.Errorf("%w: specifications are required", ErrQuoteInvalidInput)
	}
	if !cmd.RequestedPrice.IsPositive() {
		return QuoteRequest{}, fmt.Errorf("%w: requested price must be positive", ErrQuoteInvalidInput)
	}
	if cmd.ExpiresInDays < 0 {
		return QuoteRequest{}, fmt.Errorf("%w: expiresInDays must be positive", ErrQuoteInvalidInput)
	}

	expiry := s.expiry
	if cmd.ExpiresInDays > 0 {
		expiry = time.Duration(cmd.ExpiresInDays) * 24 * time.Hour
	}

	actor, err := s.loadActor(ctx, actorID)
	if err != nil {
		return QuoteRequest{}, err
	}
	if actor.Role != domain.RoleCustomer {
		return QuoteRequest{}, fmt.Errorf("%w: only customers can request quotes", ErrQuoteForbidden)
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return QuoteRequest{}, s.mapRepositoryError(err)
	}
	if product.Status != domain.ProductStatusPublished {
		return QuoteRequest{}, fmt.Errorf("%w: product is not published", ErrQuoteInvalidState)
	}
	if !product.IsCustomizable {
		return QuoteRequest{}, fmt.Errorf("%w: product does not accept custom work", ErrQuoteInvalidState)
	}
	if product.SellerID == actorID {
		return QuoteRequest{}, fmt.Errorf("%w: cannot request a quote on your own product", ErrQuoteForbidden)
	}

	now := s.now()
	quote := QuoteRequest{
		ID:             quoteIDPrefix + s.newID(),
		ProductID:      product.ID,
		CustomerID:     actorID,
		ArtisanID:      product.SellerID,
		Specifications: specs,
		RequestedPrice: cmd.RequestedPrice,
		LastOfferBy:    domain.PartyCustomer,
		Status:         domain.QuoteStatusPending,
		ExpiresAt:      now.Add(expiry),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.quotes.Insert(ctx, quote); err != nil {
		return QuoteRequest{}, s.mapRepositoryError(err)
	}

	s.publishNotification(ctx, Notification{
		Type:        quoteEventCreated,
		SubjectID:   quote.ID,
		ActorID:     actorID,
		RecipientID: quote.ArtisanID,
		OccurredAt:  now,
		Metadata: map[string]any{
			"product":        quote.ProductID,
			"requestedPrice": quote.RequestedPrice.String(),
		},
	})

	return quote, nil
}

func (s *quoteService) Get(ctx context.Context, query GetQuoteQuery) (QuoteRequest, error) {
	quote, err := s.GetQuote(ctx, query.QuoteID)
	if err != nil {
		return QuoteRequest{}, err
	}

	actor, err := s.loadActor(ctx, query.ActorID)
	if err != nil {
		return QuoteRequest{}, err
	}
	if actor.Role != domain.RoleAdmin && !isQuoteParticipant(quote, actor.ID) {
		return QuoteRequest{}, fmt.Errorf("%w: not a participant of this quote", ErrQuoteForbidden)
	}

	return s.withLazyExpiry(ctx, quote), nil
}

func (s *quoteService) List(ctx context.Context, query ListQuotesQuery) (domain.CursorPage[QuoteRequest], error) {
	actor, err := s.loadActor(ctx, query.ActorID)
	if err != nil {
		return domain.CursorPage[QuoteRequest]{}, err
	}

	filter := repositories.QuoteListFilter{
		Status:     query.Status,
		Pagination: query.Pagination,
	}
	switch actor.Role {
	case domain.RoleCustomer:
		filter.CustomerID = actor.ID
	case domain.RoleArtisan:
		filter.ArtisanID = actor.ID
	case domain.RoleAdmin:
		// Admins see every negotiation.
	default:
		return domain.CursorPage[QuoteRequest]{}, fmt.Errorf("%w: unknown role %q", ErrQuoteForbidden, actor.Role)
	}

	page, err := s.quotes.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[QuoteRequest]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

func (s *quoteService) Respond(ctx context.Context, cmd RespondQuoteCommand) (QuoteRequest, error) {
	quoteID := strings.TrimSpace(cmd.QuoteID)
	actorID := strings.TrimSpace(cmd.ActorID)
	if quoteID == "" {
		return QuoteRequest{}, fmt.Errorf("%w: quote id is required", ErrQuoteInvalidInput)
	}
	if actorID == "" {
		return QuoteRequest{}, fmt.Errorf("%w: actor id is required", ErrQuoteInvalidInput)
	}

	quote, err := s.quotes.FindByID(ctx, quoteID)
	if err != nil {
		return QuoteRequest{}, s.mapRepositoryError(err)
	}

	now := s.now()
	if quote.Status == domain.QuoteStatusPending && now.After(quote.ExpiresAt) {
		quote = s.markExpired(ctx, quote, now)
		return QuoteRequest{}, fmt.Errorf("%w: quote has expired", ErrQuoteInvalidState)
	}

	awaiting, err := awaitingParty(quote)
	if err != nil {
		return QuoteRequest{}, err
	}
	if actorID != quotePartyID(quote, awaiting) {
		return QuoteRequest{}, fmt.Errorf("%w: it is not this party's turn to respond", ErrQuoteForbidden)
	}

	prevStatus := quote.Status

	switch cmd.Action {
	case RespondActionAccept:
		final := quote.RequestedPrice
		if quote.CounterOffer != nil {
			final = *quote.CounterOffer
		}
		quote.FinalPrice = &final
		quote.Status = domain.QuoteStatusAccepted
	case RespondActionReject:
		quote.Status = domain.QuoteStatusRejected
	case RespondActionCounter:
		if cmd.CounterPrice == nil || !cmd.CounterPrice.IsPositive() {
			return QuoteRequest{}, fmt.Errorf("%w: counter price must be positive", ErrQuoteInvalidInput)
		}
		offer := *cmd.CounterPrice
		quote.CounterOffer = &offer
		quote.LastOfferBy = awaiting
		quote.Status = domain.QuoteStatusCounterOffered
	default:
		return QuoteRequest{}, fmt.Errorf("%w: unknown respond action %q", ErrQuoteInvalidInput, cmd.Action)
	}

	quote.RespondedAt = &now
	quote.UpdatedAt = now

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		if err := s.quotes.Update(txCtx, quote); err != nil {
			return s.mapRepositoryError(err)
		}
		if body := strings.TrimSpace(cmd.Message); body != "" {
			message := QuoteMessage{
				ID:        quoteMessageIDPrefix + s.newID(),
				QuoteID:   quote.ID,
				SenderID:  actorID,
				Body:      body,
				CreatedAt: now,
			}
			if err := s.quotes.AppendMessage(txCtx, message); err != nil {
				return s.mapRepositoryError(err)
			}
			quote.Messages = append(quote.Messages, message)
		}
		return nil
	})
	if err != nil {
		return QuoteRequest{}, err
	}

	s.publishNotification(ctx, Notification{
		Type:        quoteEventResponded,
		SubjectID:   quote.ID,
		ActorID:     actorID,
		RecipientID: quoteCounterpartID(quote, actorID),
		OccurredAt:  now,
		Metadata: map[string]any{
			"action":         string(cmd.Action),
			"previousStatus": string(prevStatus),
			"status":         string(quote.Status),
		},
	})

	return quote, nil
}

func (s *quoteService) AddMessage(ctx context.Context, cmd AddQuoteMessageCommand) (QuoteRequest, error) {
	quoteID := strings.TrimSpace(cmd.QuoteID)
	actorID := strings.TrimSpace(cmd.ActorID)
	body := strings.TrimSpace(cmd.Body)
	if quoteID == "" {
		return QuoteRequest{}, fmt.Errorf("%w: quote id is required", ErrQuoteInvalidInput)
	}
	if actorID == "" {
		return QuoteRequest{}, fmt.Errorf("%w: actor id is required", ErrQuoteInvalidInput)
	}
	if body == "" {
		return QuoteRequest{}, fmt.Errorf("%w: message body is required", ErrQuoteInvalidInput)
	}

	quote, err := s.quotes.FindByID(ctx, quoteID)
	if err != nil {
		return QuoteRequest{}, s.mapRepositoryError(err)
	}
	if !isQuoteParticipant(quote, actorID) {
		return QuoteRequest{}, fmt.Errorf("%w: not a participant of this quote", ErrQuoteForbidden)
	}
	if quote.Status.Terminal() {
		return QuoteRequest{}, fmt.Errorf("%w: quote is %s", ErrQuoteInvalidState, quote.Status)
	}

	now := s.now()
	message := QuoteMessage{
		ID:        quoteMessageIDPrefix + s.newID(),
		QuoteID:   quote.ID,
		SenderID:  actorID,
		Body:      body,
		CreatedAt: now,
	}
	if err := s.quotes.AppendMessage(ctx, message); err != nil {
		return QuoteRequest{}, s.mapRepositoryError(err)
	}
	quote.Messages = append(quote.Messages, message)

	s.publishNotification(ctx, Notification{
		Type:        quoteEventMessageAdded,
		SubjectID:   quote.ID,
		ActorID:     actorID,
		RecipientID: quoteCounterpartID(quote, actorID),
		OccurredAt:  now,
	})

	return quote, nil
}

func (s *quoteService) Cancel(ctx context.Context, cmd CancelQuoteCommand) (QuoteRequest, error) {
	quoteID := strings.TrimSpace(cmd.QuoteID)
	actorID := strings.TrimSpace(cmd.ActorID)
	if quoteID == "" {
		return QuoteRequest{}, fmt.Errorf("%w: quote id is required", ErrQuoteInvalidInput)
	}
	if actorID == "" {
		return QuoteRequest{}, fmt.Errorf("%w: actor id is required", ErrQuoteInvalidInput)
	}

	quote, err := s.quotes.FindByID(ctx, quoteID)
	if err != nil {
		return QuoteRequest{}, s.mapRepositoryError(err)
	}
	if !isQuoteParticipant(quote, actorID) {
		return QuoteRequest{}, fmt.Errorf("%w: only the quote's customer or artisan can cancel it", ErrQuoteForbidden)
	}
	if quote.Status != domain.QuoteStatusPending && quote.Status != domain.QuoteStatusCounterOffered {
		return QuoteRequest{}, fmt.Errorf("%w: quote is %s", ErrQuoteInvalidState, quote.Status)
	}

	now := s.now()
	quote.Status = domain.QuoteStatusRejected
	quote.RespondedAt = &now
	quote.UpdatedAt = now

	if err := s.quotes.Update(ctx, quote); err != nil {
		return QuoteRequest{}, s.mapRepositoryError(err)
	}

	s.publishNotification(ctx, Notification{
		Type:        quoteEventCancelled,
		SubjectID:   quote.ID,
		ActorID:     actorID,
		RecipientID: quoteCounterpartID(quote, actorID),
		OccurredAt:  now,
	})

	return quote, nil
}

// ExpireOpen sweeps pending quotes past their deadline. Negotiations with a
// counter offer on the table are left alone.
func (s *quoteService) ExpireOpen(ctx context.Context) (int64, error) {
	now := s.now()
	expired, err := s.quotes.ExpirePending(ctx, now)
	if err != nil {
		return 0, s.mapRepositoryError(err)
	}
	if expired > 0 {
		s.logger(ctx, "quote.expired.swept", map[string]any{
			"count": expired,
		})
	}
	return expired, nil
}

func (s *quoteService) GetQuote(ctx context.Context, quoteID string) (QuoteRequest, error) {
	quoteID = strings.TrimSpace(quoteID)
	if quoteID == "" {
		return QuoteRequest{}, fmt.Errorf("%w: quote id is required", ErrQuoteInvalidInput)
	}

	quote, err := s.quotes.FindByID(ctx, quoteID)
	if err != nil {
		return QuoteRequest{}, s.mapRepositoryError(err)
	}
	return quote, nil
}

func (s *quoteService) CompleteViaOrder(ctx context.Context, cmd CompleteQuoteCommand) (QuoteRequest, error) {
	quoteID := strings.TrimSpace(cmd.QuoteID)
	if quoteID == "" {
		return QuoteRequest{}, fmt.Errorf("%w: quote id is required", ErrQuoteInvalidInput)
	}

	quote, err := s.quotes.FindByID(ctx, quoteID)
	if err != nil {
		return QuoteRequest{}, s.mapRepositoryError(err)
	}
	if quote.Status != domain.QuoteStatusAccepted {
		return QuoteRequest{}, fmt.Errorf("%w: quote is %s, must be accepted", ErrQuoteInvalidState, quote.Status)
	}

	now := s.now()
	quote.Status = domain.QuoteStatusCompleted
	quote.UpdatedAt = now

	if err := s.quotes.Update(ctx, quote); err != nil {
		return QuoteRequest{}, s.mapRepositoryError(err)
	}

	s.publishNotification(ctx, Notification{
		Type:        quoteEventCompleted,
		SubjectID:   quote.ID,
		ActorID:     cmd.ActorID,
		RecipientID: quote.ArtisanID,
		OccurredAt:  now,
		Metadata: map[string]any{
			"order": cmd.OrderID,
		},
	})

	return quote, nil
}

// withLazyExpiry flips a pending quote that lapsed between sweeps so readers
// never see a stale pending state.
func (s *quoteService) withLazyExpiry(ctx context.Context, quote QuoteRequest) QuoteRequest {
	now := s.now()
	if quote.Status == domain.QuoteStatusPending && now.After(quote.ExpiresAt) {
		return s.markExpired(ctx, quote, now)
	}
	return quote
}

func (s *quoteService) markExpired(ctx context.Context, quote QuoteRequest, now time.Time) QuoteRequest {
	quote.Status = domain.QuoteStatusExpired
	quote.UpdatedAt = now
	if err := s.quotes.Update(ctx, quote); err != nil {
		s.logger(ctx, "quote.expire.failed", map[string]any{
			"quote": quote.ID,
			"error": err.Error(),
		})
	}
	return quote
}

func (s *quoteService) loadActor(ctx context.Context, actorID string) (User, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return User{}, fmt.Errorf("%w: actor id is required", ErrQuoteInvalidInput)
	}
	actor, err := s.users.FindByID(ctx, actorID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return User{}, fmt.Errorf("%w: unknown actor %q", ErrQuoteForbidden, actorID)
		}
		return User{}, s.mapRepositoryError(err)
	}
	return actor, nil
}

func (s *quoteService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrQuoteNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrQuoteConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("quote: repository unavailable: %w", err)
		}
	}

	return err
}

func (s *quoteService) runInTx(ctx context.Context, fn func(context.Context) error) error {
	if s.unitOfWork == nil {
		return fn(ctx)
	}
	return s.unitOfWork.RunInTx(ctx, fn)
}

func (s *quoteService) now() time.Time {
	return s.clock()
}

func (s *quoteService) publishNotification(ctx context.Context, notification Notification) {
	if s.events == nil {
		return
	}
	if notification.Metadata != nil {
		notification.Metadata = maps.Clone(notification.Metadata)
	}
	if err := s.events.PublishNotification(ctx, notification); err != nil {
		s.logger(ctx, "quote.notification.publish.failed", map[string]any{
			"type":  notification.Type,
			"quote": notification.SubjectID,
			"error": err.Error(),
		})
	}
}

// awaitingParty reports whose turn it is to answer the offer on the table.
func awaitingParty(quote QuoteRequest) (QuoteParty, error) {
	switch quote.Status {
	case domain.QuoteStatusPending:
		return domain.PartyArtisan, nil
	case domain.QuoteStatusCounterOffered:
		if quote.LastOfferBy == domain.PartyArtisan {
			return domain.PartyCustomer, nil
		}
		return domain.PartyArtisan, nil
	default:
		return "", fmt.Errorf("%w: quote is %s, no response expected", ErrQuoteInvalidState, quote.Status)
	}
}

func quotePartyID(quote QuoteRequest, party QuoteParty) string {
	if party == domain.PartyArtisan {
		return quote.ArtisanID
	}
	return quote.CustomerID
}

func quoteCounterpartID(quote QuoteRequest, actorID string) string {
	if actorID == quote.CustomerID {
		return quote.ArtisanID
	}
	return quote.CustomerID
}

func isQuoteParticipant(quote QuoteRequest, actorID string) bool {
	return actorID == quote.CustomerID || actorID == quote.ArtisanID
}
