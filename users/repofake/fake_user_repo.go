package fakeuserrepo

import (
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-oauth2-framework/users"
)

var _ users.UserRepo = (*FakeUserRepo)(nil)

// FakeUserRepo keeps users in memory. Get returns copies so callers never
// observe concurrent updates.
type FakeUserRepo struct {
	users    map[string]*users.User // client/username -> user
	emailIDs map[string]string      // client/email -> client/username
	lock     sync.RWMutex
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		users:    make(map[string]*users.User),
		emailIDs: make(map[string]string),
	}
}

func userKey(clientID, username string) string {
	return clientID + "/" + users.NormaliseUsername(username)
}

func emailKey(clientID, email string) string {
	return clientID + "/" + strings.ToLower(strings.TrimSpace(email))
}

func (ur *FakeUserRepo) Insert(user *users.User) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	key := userKey(user.ClientID, user.Username)
	if _, ok := ur.users[key]; ok {
		return users.ErrAlreadyExists
	}
	if user.Email != "" {
		if _, ok := ur.emailIDs[emailKey(user.ClientID, user.Email)]; ok {
			return users.ErrAlreadyExists
		}
	}

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	stored := *user
	ur.users[key] = &stored
	if user.Email != "" {
		ur.emailIDs[emailKey(user.ClientID, user.Email)] = key
	}
	return nil
}

func (ur *FakeUserRepo) Delete(clientID, username string) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	key := userKey(clientID, username)
	user, ok := ur.users[key]
	if !ok {
		return users.ErrNotFound
	}
	delete(ur.emailIDs, emailKey(clientID, user.Email))
	delete(ur.users, key)
	return nil
}

func (ur *FakeUserRepo) Get(clientID, username string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	user, ok := ur.users[userKey(clientID, username)]
	if !ok {
		return nil, users.ErrNotFound
	}
	found := *user
	return &found, nil
}

func (ur *FakeUserRepo) GetByEmail(clientID, email string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	key, ok := ur.emailIDs[emailKey(clientID, email)]
	if !ok {
		return nil, users.ErrNotFound
	}
	found := *ur.users[key]
	return &found, nil
}

func (ur *FakeUserRepo) SetVerified(clientID, username string, verified bool) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	user, ok := ur.users[userKey(clientID, username)]
	if !ok {
		return users.ErrNotFound
	}
	user.Verified = verified
	return nil
}

func (ur *FakeUserRepo) SetPasswordHash(clientID, username, passwordHash string) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	user, ok := ur.users[userKey(clientID, username)]
	if !ok {
		return users.ErrNotFound
	}
	user.PasswordHash = passwordHash
	return nil
}
