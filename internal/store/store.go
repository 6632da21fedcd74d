package store

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-oauth2-framework/clients"
	"github.com/jrsteele09/go-oauth2-framework/users"
	bolt "go.etcd.io/bbolt"
)

const (
	dirPerm     = fs.FileMode(0o700)
	filePerm    = fs.FileMode(0o600)
	openTimeout = 5 * time.Second
)

var (
	clientsBucket    = []byte("clients")
	usersBucket      = []byte("users")
	userEmailsBucket = []byte("user_emails")
)

var (
	_ clients.Repo   = (*ClientRepo)(nil)
	_ users.UserRepo = (*UserRepo)(nil)
)

// Store wraps a bbolt database holding clients and users.
type Store struct {
	db *bolt.DB
}

// Open opens the database at path, creating it and its buckets if needed.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	db, err := bolt.Open(path, filePerm, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening store db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{clientsBucket, usersBucket, userEmailsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing store db: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Clients returns the client repository backed by this store
func (s *Store) Clients() *ClientRepo {
	return &ClientRepo{db: s.db}
}

// Users returns the user repository backed by this store
func (s *Store) Users() *UserRepo {
	return &UserRepo{db: s.db}
}

// ClientRepo persists clients keyed by ID. Keys sort bytewise so List pages
// in ID order.
type ClientRepo struct {
	db *bolt.DB
}

func (r *ClientRepo) Upsert(clientData *clients.Client) error {
	if clientData.ID == "" {
		clientData.ID = uuid.New().String()
	}
	data, err := json.Marshal(clientData)
	if err != nil {
		return fmt.Errorf("marshaling client: %w", err)
	}
	return r.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(clientsBucket).Put([]byte(clientData.ID), data)
	})
}

func (r *ClientRepo) Delete(clientID string) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(clientsBucket)
		if b.Get([]byte(clientID)) == nil {
			return clients.ErrNotFound
		}
		return b.Delete([]byte(clientID))
	})
}

func (r *ClientRepo) Get(clientID string) (*clients.Client, error) {
	var client *clients.Client
	err := r.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(clientsBucket).Get([]byte(clientID))
		if v == nil {
			return clients.ErrNotFound
		}
		client = &clients.Client{}
		return json.Unmarshal(v, client)
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (r *ClientRepo) List(offset, limit int) ([]*clients.Client, error) {
	if offset < 0 {
		return nil, nil
	}

	var clientList []*clients.Client
	err := r.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(clientsBucket).Cursor()
		skipped := 0
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if skipped < offset {
				skipped++
				continue
			}
			if limit > 0 && len(clientList) == limit {
				break
			}
			client := &clients.Client{}
			if err := json.Unmarshal(v, client); err != nil {
				return fmt.Errorf("decoding client %q: %w", k, err)
			}
			clientList = append(clientList, client)
		}
		return nil
	})
	return clientList, err
}

// userRecord is the stored form of a user. users.User hides its password
// hash from JSON, so the record carries it explicitly.
type userRecord struct {
	ID           string    `json:"id"`
	ClientID     string    `json:"client_id"`
	Email        string    `json:"email,omitempty"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	DateJoined   time.Time `json:"date_joined"`
	Verified     bool      `json:"verified"`
}

func newUserRecord(u *users.User) userRecord {
	return userRecord{
		ID:           u.ID,
		ClientID:     u.ClientID,
		Email:        u.Email,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		DateJoined:   u.DateJoined,
		Verified:     u.Verified,
	}
}

func (rec userRecord) user() *users.User {
	return &users.User{
		ID:           rec.ID,
		ClientID:     rec.ClientID,
		Email:        rec.Email,
		Username:     rec.Username,
		PasswordHash: rec.PasswordHash,
		DateJoined:   rec.DateJoined,
		Verified:     rec.Verified,
	}
}

// UserRepo persists users scoped by client. Usernames and emails are
// indexed case-insensitively.
type UserRepo struct {
	db *bolt.DB
}

func userKey(clientID, username string) []byte {
	return []byte(clientID + "\x00" + users.NormaliseUsername(username))
}

func emailKey(clientID, email string) []byte {
	return []byte(clientID + "\x00" + strings.ToLower(strings.TrimSpace(email)))
}

func (ur *UserRepo) Insert(user *users.User) error {
	return ur.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(usersBucket)
		emails := tx.Bucket(userEmailsBucket)

		key := userKey(user.ClientID, user.Username)
		if b.Get(key) != nil {
			return users.ErrAlreadyExists
		}
		if user.Email != "" && emails.Get(emailKey(user.ClientID, user.Email)) != nil {
			return users.ErrAlreadyExists
		}

		if user.ID == "" {
			user.ID = uuid.New().String()
		}
		data, err := json.Marshal(newUserRecord(user))
		if err != nil {
			return fmt.Errorf("marshaling user: %w", err)
		}
		if err := b.Put(key, data); err != nil {
			return err
		}
		if user.Email != "" {
			return emails.Put(emailKey(user.ClientID, user.Email), key)
		}
		return nil
	})
}

func (ur *UserRepo) Delete(clientID, username string) error {
	return ur.db.Update(func(tx *bolt.Tx) error {
		key := userKey(clientID, username)
		rec, err := getRecord(tx, key)
		if err != nil {
			return err
		}
		if rec.Email != "" {
			if err := tx.Bucket(userEmailsBucket).Delete(emailKey(clientID, rec.Email)); err != nil {
				return err
			}
		}
		return tx.Bucket(usersBucket).Delete(key)
	})
}

func (ur *UserRepo) Get(clientID, username string) (*users.User, error) {
	var user *users.User
	err := ur.db.View(func(tx *bolt.Tx) error {
		rec, err := getRecord(tx, userKey(clientID, username))
		if err != nil {
			return err
		}
		user = rec.user()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (ur *UserRepo) GetByEmail(clientID, email string) (*users.User, error) {
	var user *users.User
	err := ur.db.View(func(tx *bolt.Tx) error {
		key := tx.Bucket(userEmailsBucket).Get(emailKey(clientID, email))
		if key == nil {
			return users.ErrNotFound
		}
		rec, err := getRecord(tx, key)
		if err != nil {
			return err
		}
		user = rec.user()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (ur *UserRepo) SetVerified(clientID, username string, verified bool) error {
	return ur.update(clientID, username, func(rec *userRecord) {
		rec.Verified = verified
	})
}

func (ur *UserRepo) SetPasswordHash(clientID, username, passwordHash string) error {
	return ur.update(clientID, username, func(rec *userRecord) {
		rec.PasswordHash = passwordHash
	})
}

func (ur *UserRepo) update(clientID, username string, change func(*userRecord)) error {
	return ur.db.Update(func(tx *bolt.Tx) error {
		key := userKey(clientID, username)
		rec, err := getRecord(tx, key)
		if err != nil {
			return err
		}
		change(&rec)
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshaling user: %w", err)
		}
		return tx.Bucket(usersBucket).Put(key, data)
	})
}

func getRecord(tx *bolt.Tx, key []byte) (userRecord, error) {
	var rec userRecord
	v := tx.Bucket(usersBucket).Get(key)
	if v == nil {
		return rec, users.ErrNotFound
	}
	if err := json.Unmarshal(v, &rec); err != nil {
		return rec, fmt.Errorf("decoding user: %w", err)
	}
	return rec, nil
}
