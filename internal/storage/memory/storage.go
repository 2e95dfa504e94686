package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/scorekeep/scorekeep/internal/model"
	"github.com/scorekeep/scorekeep/internal/storage"
)

// Storage is an in-memory implementation of the storage interface.
// All conditional operations are atomic under a single mutex, which is
// what gives this backend its uniqueness guarantees.
type Storage struct {
	mu sync.RWMutex

	identities map[model.IdentityID]*model.Identity
	// nameIndex maps normalized primary and alias names of active
	// identities to their owner; this is the uniqueness constraint
	nameIndex map[string]model.IdentityID
	// userIndex maps user IDs to their non-deleted identity
	userIndex map[model.UserID]model.IdentityID

	users         map[model.UserID]*model.User
	usernameIndex map[string]model.UserID

	games map[string]map[model.GameID]*model.GameRecord

	tasks     map[model.TaskID]*model.PropagationTask
	taskOrder []model.TaskID
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		identities:    make(map[model.IdentityID]*model.Identity),
		nameIndex:     make(map[string]model.IdentityID),
		userIndex:     make(map[model.UserID]model.IdentityID),
		users:         make(map[model.UserID]*model.User),
		usernameIndex: make(map[string]model.UserID),
		games:         make(map[string]map[model.GameID]*model.GameRecord),
		tasks:         make(map[model.TaskID]*model.PropagationTask),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Identity operations

func (s *Storage) CreateIdentity(ctx context.Context, identity *model.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, name := range identity.AllNormalizedNames() {
		if owner, ok := s.nameIndex[name]; ok && owner != identity.ID {
			return model.ErrNameInUse
		}
	}
	if identity.UserID != "" {
		if owner, ok := s.userIndex[identity.UserID]; ok && owner != identity.ID {
			return model.ErrUserHasIdentity
		}
	}

	s.identities[identity.ID] = identity
	s.reindexLocked(identity)
	return nil
}

func (s *Storage) SaveIdentity(ctx context.Context, identity *model.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identities[identity.ID] = identity
	s.reindexLocked(identity)
	return nil
}

func (s *Storage) SaveIdentities(ctx context.Context, identities ...*model.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, identity := range identities {
		s.identities[identity.ID] = identity
		s.reindexLocked(identity)
	}
	return nil
}

func (s *Storage) GetIdentity(ctx context.Context, id model.IdentityID) (*model.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	identity, ok := s.identities[id]
	if !ok {
		return nil, model.ErrIdentityNotFound
	}
	return identity, nil
}

func (s *Storage) FindIdentityByName(ctx context.Context, normalized string) (*model.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id, ok := s.nameIndex[normalized]; ok {
		return s.identities[id], nil
	}

	// Fall back to name history; oldest identity wins for determinism
	var match *model.Identity
	for _, identity := range s.identities {
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
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.userIndex[userID]
	if !ok {
		return nil, model.ErrIdentityNotFound
	}
	return s.identities[id], nil
}

func (s *Storage) FindGuestsByAlias(ctx context.Context, normalized string) ([]*model.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var guests []*model.Identity
	for _, identity := range s.identities {
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
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.userIndex[userID]; ok {
		return nil, model.ErrUserHasIdentity
	}

	id, ok := s.nameIndex[normalized]
	if !ok {
		return nil, model.ErrIdentityNotFound
	}
	identity := s.identities[id]
	if identity.Status != model.StatusActive || identity.Kind != model.KindGuest || identity.UserID != "" {
		return nil, model.ErrIdentityNotFound
	}
	// Only a primary-name match is claimable here; alias matches go
	// through the link workflow instead
	if identity.NormalizedName != normalized {
		return nil, model.ErrIdentityNotFound
	}

	identity.UserID = userID
	identity.Kind = model.KindUser
	identity.UpdatedAt = now
	s.userIndex[userID] = identity.ID
	return identity, nil
}

func (s *Storage) SearchIdentities(ctx context.Context, filter storage.SearchFilter) (*storage.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []*model.Identity
	for _, identity := range s.identities {
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

// reindexLocked synchronizes the name and user indexes with the
// identity's current state; caller must hold the write lock
func (s *Storage) reindexLocked(identity *model.Identity) {
	for name, owner := range s.nameIndex {
		if owner == identity.ID {
			delete(s.nameIndex, name)
		}
	}
	for userID, owner := range s.userIndex {
		if owner == identity.ID {
			delete(s.userIndex, userID)
		}
	}

	if identity.Status == model.StatusActive {
		for _, name := range identity.AllNormalizedNames() {
			s.nameIndex[name] = identity.ID
		}
	}
	if identity.UserID != "" && identity.Status != model.StatusDeleted {
		s.userIndex[identity.UserID] = identity.ID
	}
}

// User operations

func (s *Storage) CreateUser(ctx context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.usernameIndex[user.Username]; ok {
		return model.ErrUsernameExists
	}
	s.users[user.ID] = user
	s.usernameIndex[user.Username] = user.ID
	return nil
}

func (s *Storage) GetUser(ctx context.Context, id model.UserID) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	return user, nil
}

func (s *Storage) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.usernameIndex[username]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	return s.users[id], nil
}

// Game operations

func (s *Storage) SaveGame(ctx context.Context, collection string, game *model.GameRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	games, ok := s.games[collection]
	if !ok {
		games = make(map[model.GameID]*model.GameRecord)
		s.games[collection] = games
	}
	games[game.ID] = game
	return nil
}

func (s *Storage) GetGame(ctx context.Context, collection string, id model.GameID) (*model.GameRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	game, ok := s.games[collection][id]
	if !ok {
		return nil, model.ErrGameNotFound
	}
	return game, nil
}

func (s *Storage) FindGamesByIdentity(ctx context.Context, collection string, id model.IdentityID) ([]*model.GameRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*model.GameRecord
	for _, game := range s.games[collection] {
		if game.ReferencesIdentity(id) {
			result = append(result, game)
		}
	}
	sortGames(result)
	return result, nil
}

func (s *Storage) FindGamesByPreviousIdentity(ctx context.Context, collection string, id model.IdentityID) ([]*model.GameRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*model.GameRecord
	for _, game := range s.games[collection] {
		if game.HasPreviousIdentity(id) {
			result = append(result, game)
		}
	}
	sortGames(result)
	return result, nil
}

func sortGames(games []*model.GameRecord) {
	sort.Slice(games, func(i, j int) bool { return games[i].ID < games[j].ID })
}

// Propagation outbox operations

func (s *Storage) EnqueueTask(ctx context.Context, task *model.PropagationTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[task.ID]; !ok {
		s.taskOrder = append(s.taskOrder, task.ID)
	}
	s.tasks[task.ID] = task
	return nil
}

func (s *Storage) ListPendingTasks(ctx context.Context, limit int) ([]*model.PropagationTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*model.PropagationTask
	for _, id := range s.taskOrder {
		task, ok := s.tasks[id]
		if !ok {
			continue
		}
		result = append(result, task)
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

func (s *Storage) UpdateTask(ctx context.Context, task *model.PropagationTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[task.ID]; !ok {
		return model.ErrTaskNotFound
	}
	s.tasks[task.ID] = task
	return nil
}

func (s *Storage) CompleteTask(ctx context.Context, id model.TaskID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, id)
	for i, tid := range s.taskOrder {
		if tid == id {
			s.taskOrder = append(s.taskOrder[:i], s.taskOrder[i+1:]...)
			break
		}
	}
	return nil
}
