package redis

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/scorekeep/scorekeep/internal/model"
	"github.com/scorekeep/scorekeep/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface.
// Name and user uniqueness rest on SETNX index keys; the registration
// claim uses an optimistic WATCH transaction.
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Storage{
		client: client,
		cfg:    cfg,
	}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Identity operations

func (s *Storage) CreateIdentity(ctx context.Context, identity *model.Identity) error {
	data, err := json.Marshal(identity)
	if err != nil {
		return err
	}

	// Reserve every name the identity claims; the SETNX on the name
	// index is the duplicate-creation guard under concurrent resolves
	var reserved []string
	release := func() {
		for _, key := range reserved {
			s.client.Del(ctx, key)
		}
	}

	for _, name := range identity.AllNormalizedNames() {
		key := nameIndexKey(name)
		ok, err := s.client.SetNX(ctx, key, string(identity.ID), 0).Result()
		if err != nil {
			release()
			return err
		}
		if !ok {
			release()
			return model.ErrNameInUse
		}
		reserved = append(reserved, key)
	}

	if identity.UserID != "" {
		ok, err := s.client.SetNX(ctx, userIndexKey(identity.UserID), string(identity.ID), 0).Result()
		if err != nil {
			release()
			return err
		}
		if !ok {
			release()
			return model.ErrUserHasIdentity
		}
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, identityKey(identity.ID), data, 0)
	pipe.SAdd(ctx, identitySetKey(), string(identity.ID))
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) SaveIdentity(ctx context.Context, identity *model.Identity) error {
	return s.SaveIdentities(ctx, identity)
}

func (s *Storage) SaveIdentities(ctx context.Context, identities ...*model.Identity) error {
	// Gather index changes from the stored copies first, then apply the
	// writes in one transaction. Callers that free a name on one
	// identity and assign it to another in the same batch must order the
	// freeing identity first.
	type indexDelta struct {
		identity *model.Identity
		data     []byte
		dropName []string
		dropUser []model.UserID
	}

	deltas := make([]indexDelta, 0, len(identities))
	for _, identity := range identities {
		data, err := json.Marshal(identity)
		if err != nil {
			return err
		}
		delta := indexDelta{identity: identity, data: data}

		old, err := s.getIdentity(ctx, identity.ID)
		if err != nil && !errors.Is(err, model.ErrIdentityNotFound) {
			return err
		}
		if old != nil {
			for _, name := range old.AllNormalizedNames() {
				if owned, err := s.ownsNameKey(ctx, name, identity.ID); err != nil {
					return err
				} else if owned {
					delta.dropName = append(delta.dropName, name)
				}
			}
			if old.UserID != "" && old.UserID != identity.UserID {
				delta.dropUser = append(delta.dropUser, old.UserID)
			}
		}
		deltas = append(deltas, delta)
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, delta := range deltas {
			for _, name := range delta.dropName {
				pipe.Del(ctx, nameIndexKey(name))
			}
			for _, userID := range delta.dropUser {
				pipe.Del(ctx, userIndexKey(userID))
			}
		}
		for _, delta := range deltas {
			identity := delta.identity
			if identity.Status == model.StatusActive {
				for _, name := range identity.AllNormalizedNames() {
					pipe.Set(ctx, nameIndexKey(name), string(identity.ID), 0)
				}
			}
			if identity.UserID != "" && identity.Status != model.StatusDeleted {
				pipe.Set(ctx, userIndexKey(identity.UserID), string(identity.ID), 0)
			}
			pipe.Set(ctx, identityKey(identity.ID), delta.data, 0)
			pipe.SAdd(ctx, identitySetKey(), string(identity.ID))
		}
		return nil
	})
	return err
}

// ownsNameKey reports whether the name index entry exists and points at
// the given identity
func (s *Storage) ownsNameKey(ctx context.Context, normalized string, id model.IdentityID) (bool, error) {
	val, err := s.client.Get(ctx, nameIndexKey(normalized)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	return val == string(id), nil
}

func (s *Storage) GetIdentity(ctx context.Context, id model.IdentityID) (*model.Identity, error) {
	return s.getIdentity(ctx, id)
}

func (s *Storage) getIdentity(ctx context.Context, id model.IdentityID) (*model.Identity, error) {
	data, err := s.client.Get(ctx, identityKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrIdentityNotFound
		}
		return nil, err
	}

	var identity model.Identity
	if err := json.Unmarshal(data, &identity); err != nil {
		return nil, err
	}
	return &identity, nil
}

func (s *Storage) FindIdentityByName(ctx context.Context, normalized string) (*model.Identity, error) {
	idStr, err := s.client.Get(ctx, nameIndexKey(normalized)).Result()
	if err == nil {
		return s.getIdentity(ctx, model.IdentityID(idStr))
	}
	if !errors.Is(err, redis.Nil) {
		return nil, err
	}

	// Fall back to name history; oldest identity wins for determinism
	all, err := s.scanIdentities(ctx)
	if err != nil {
		return nil, err
	}
	var match *model.Identity
	for _, identity := range all {
		if identity.Status != model.StatusActive && identity.Status != model.StatusLinked {
			continue
		}
		if !identity.HadName(normalized) {
			continue
		}
		if match == nil || identity.CreatedAt.Before(match.CreatedAt) {
			match = identity
		}
	}
	if match == nil {
		return nil, model.ErrIdentityNotFound
	}
	return match, nil
}

func (s *Storage) FindIdentityByUserID(ctx context.Context, userID model.UserID) (*model.Identity, error) {
	idStr, err := s.client.Get(ctx, userIndexKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrIdentityNotFound
		}
		return nil, err
	}
	return s.getIdentity(ctx, model.IdentityID(idStr))
}

func (s *Storage) FindGuestsByAlias(ctx context.Context, normalized string) ([]*model.Identity, error) {
	all, err := s.scanIdentities(ctx)
	if err != nil {
		return nil, err
	}

	var guests []*model.Identity
	for _, identity := range all {
		if identity.Status != model.StatusActive || identity.Kind != model.KindGuest || identity.UserID != "" {
			continue
		}
		if identity.NormalizedName != normalized && identity.HasAlias(normalized) {
			guests = append(guests, identity)
		}
	}
	sort.Slice(guests, func(i, j int) bool { return guests[i].ID < guests[j].ID })
	return guests, nil
}

func (s *Storage) ClaimIdentity(ctx context.Context, normalized string, userID model.UserID, now time.Time) (*model.Identity, error) {
	nameKey := nameIndexKey(normalized)
	userKey := userIndexKey(userID)

	var claimed *model.Identity

	claim := func(tx *redis.Tx) error {
		claimed = nil

		// A user may hold at most one non-deleted identity
		if _, err := tx.Get(ctx, userKey).Result(); err == nil {
			return model.ErrUserHasIdentity
		} else if !errors.Is(err, redis.Nil) {
			return err
		}

		idStr, err := tx.Get(ctx, nameKey).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return model.ErrIdentityNotFound
			}
			return err
		}

		idKey := identityKey(model.IdentityID(idStr))
		if err := tx.Watch(ctx, idKey).Err(); err != nil {
			return err
		}

		data, err := tx.Get(ctx, idKey).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return model.ErrIdentityNotFound
			}
			return err
		}

		var identity model.Identity
		if err := json.Unmarshal(data, &identity); err != nil {
			return err
		}

		// Only an unclaimed active guest whose primary name matches is
		// claimable; alias matches go through the link workflow
		if identity.Status != model.StatusActive ||
			identity.Kind != model.KindGuest ||
			identity.UserID != "" ||
			identity.NormalizedName != normalized {
			return model.ErrIdentityNotFound
		}

		identity.UserID = userID
		identity.Kind = model.KindUser
		identity.UpdatedAt = now

		updated, err := json.Marshal(&identity)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, idKey, updated, 0)
			pipe.Set(ctx, userKey, string(identity.ID), 0)
			return nil
		})
		if err != nil {
			return err
		}

		claimed = &identity
		return nil
	}

	retries := s.cfg.ClaimRetries
	if retries <= 0 {
		retries = 1
	}
	for i := 0; i < retries; i++ {
		err := s.client.Watch(ctx, claim, nameKey, userKey)
		if err == nil {
			return claimed, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue // Lost the race; re-read and try again
		}
		return nil, err
	}
	return nil, model.ErrIdentityNotFound
}

func (s *Storage) SearchIdentities(ctx context.Context, filter storage.SearchFilter) (*storage.SearchResult, error) {
	all, err := s.scanIdentities(ctx)
	if err != nil {
		return nil, err
	}

	var matches []*model.Identity
	for _, identity := range all {
		if filter.Matches(identity) {
			matches = append(matches, identity)
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].CreatedAt.Before(matches[j].CreatedAt)
		}
		return matches[i].ID < matches[j].ID
	})

	total := len(matches)
	if filter.Offset > 0 {
		if filter.Offset >= len(matches) {
			matches = nil
		} else {
			matches = matches[filter.Offset:]
		}
	}
	if filter.Limit > 0 && len(matches) > filter.Limit {
		matches = matches[:filter.Limit]
	}

	return &storage.SearchResult{Identities: matches, Total: total}, nil
}

// scanIdentities loads every identity via the identity set index
func (s *Storage) scanIdentities(ctx context.Context) ([]*model.Identity, error) {
	ids, err := s.client.SMembers(ctx, identitySetKey()).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = identityKey(model.IdentityID(id))
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	identities := make([]*model.Identity, 0, len(values))
	for _, val := range values {
		if val == nil {
			continue
		}
		var identity model.Identity
		if err := json.Unmarshal([]byte(val.(string)), &identity); err != nil {
			continue // Skip invalid data
		}
		identities = append(identities, &identity)
	}
	return identities, nil
}

// User operations

func (s *Storage) CreateUser(ctx context.Context, user *model.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}

	ok, err := s.client.SetNX(ctx, usernameIndexKey(user.Username), string(user.ID), 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return model.ErrUsernameExists
	}

	return s.client.Set(ctx, userKey(user.ID), data, 0).Err()
}

func (s *Storage) GetUser(ctx context.Context, id model.UserID) (*model.User, error) {
	data, err := s.client.Get(ctx, userKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrUserNotFound
		}
		return nil, err
	}

	var user model.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Storage) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	idStr, err := s.client.Get(ctx, usernameIndexKey(username)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrUserNotFound
		}
		return nil, err
	}
	return s.GetUser(ctx, model.UserID(idStr))
}

// Game operations

func (s *Storage) SaveGame(ctx context.Context, collection string, game *model.GameRecord) error {
	data, err := json.Marshal(game)
	if err != nil {
		return err
	}

	gKey := gameKey(collection, game.ID)

	// Index every referenced identity so propagation can find this game.
	// Stale index members are tolerated and filtered out on read.
	refs := make(map[model.IdentityID]struct{})
	prevs := make(map[model.IdentityID]struct{})
	for _, p := range game.Players {
		if p.IdentityID != "" {
			refs[p.IdentityID] = struct{}{}
		}
		if p.PreviousIdentityID != "" {
			prevs[p.PreviousIdentityID] = struct{}{}
		}
	}
	if game.WinnerIdentityID != "" {
		refs[game.WinnerIdentityID] = struct{}{}
	}
	for _, w := range game.WinnerIdentityIDs {
		refs[w] = struct{}{}
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, gKey, data, 0)
	for id := range refs {
		pipe.SAdd(ctx, gamesByIdentityKey(collection, id), gKey)
	}
	for id := range prevs {
		pipe.SAdd(ctx, gamesByPreviousKey(collection, id), gKey)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) GetGame(ctx context.Context, collection string, id model.GameID) (*model.GameRecord, error) {
	data, err := s.client.Get(ctx, gameKey(collection, id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrGameNotFound
		}
		return nil, err
	}

	var game model.GameRecord
	if err := json.Unmarshal(data, &game); err != nil {
		return nil, err
	}
	return &game, nil
}

func (s *Storage) FindGamesByIdentity(ctx context.Context, collection string, id model.IdentityID) ([]*model.GameRecord, error) {
	games, err := s.gamesFromIndex(ctx, gamesByIdentityKey(collection, id))
	if err != nil {
		return nil, err
	}

	result := games[:0]
	for _, game := range games {
		if game.ReferencesIdentity(id) {
			result = append(result, game)
		}
	}
	return result, nil
}

func (s *Storage) FindGamesByPreviousIdentity(ctx context.Context, collection string, id model.IdentityID) ([]*model.GameRecord, error) {
	games, err := s.gamesFromIndex(ctx, gamesByPreviousKey(collection, id))
	if err != nil {
		return nil, err
	}

	result := games[:0]
	for _, game := range games {
		if game.HasPreviousIdentity(id) {
			result = append(result, game)
		}
	}
	return result, nil
}

// gamesFromIndex loads the games named by an index set, sorted by ID
func (s *Storage) gamesFromIndex(ctx context.Context, indexKey string) ([]*model.GameRecord, error) {
	gameKeys, err := s.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, err
	}
	if len(gameKeys) == 0 {
		return nil, nil
	}

	values, err := s.client.MGet(ctx, gameKeys...).Result()
	if err != nil {
		return nil, err
	}

	games := make([]*model.GameRecord, 0, len(values))
	for _, val := range values {
		if val == nil {
			continue
		}
		var game model.GameRecord
		if err := json.Unmarshal([]byte(val.(string)), &game); err != nil {
			continue
		}
		games = append(games, &game)
	}
	sort.Slice(games, func(i, j int) bool { return games[i].ID < games[j].ID })
	return games, nil
}

// Propagation outbox operations

func (s *Storage) EnqueueTask(ctx context.Context, task *model.PropagationTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, taskKey(task.ID), data, 0)
	pipe.ZAdd(ctx, outboxKey(), redis.Z{
		Score:  float64(task.CreatedAt.UnixNano()),
		Member: string(task.ID),
	})
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) ListPendingTasks(ctx context.Context, limit int) ([]*model.PropagationTask, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}

	ids, err := s.client.ZRange(ctx, outboxKey(), 0, stop).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = taskKey(model.TaskID(id))
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	tasks := make([]*model.PropagationTask, 0, len(values))
	for _, val := range values {
		if val == nil {
			continue
		}
		var task model.PropagationTask
		if err := json.Unmarshal([]byte(val.(string)), &task); err != nil {
			continue
		}
		tasks = append(tasks, &task)
	}
	return tasks, nil
}

func (s *Storage) UpdateTask(ctx context.Context, task *model.PropagationTask) error {
	exists, err := s.client.Exists(ctx, taskKey(task.ID)).Result()
	if err != nil {
		return err
	}
	if exists == 0 {
		return model.ErrTaskNotFound
	}

	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, taskKey(task.ID), data, 0).Err()
}

func (s *Storage) CompleteTask(ctx context.Context, id model.TaskID) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, taskKey(id))
	pipe.ZRem(ctx, outboxKey(), string(id))
	_, err := pipe.Exec(ctx)
	return err
}
