package fakeclientrepo

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-oauth2-framework/clients"
)

var _ clients.Repo = (*FakeClientRepo)(nil)

type FakeClientRepo struct {
	clients map[string]*clients.Client
	lock    sync.RWMutex
}

func NewFakeClientRepo() *FakeClientRepo {
	return &FakeClientRepo{
		clients: make(map[string]*clients.Client),
	}
}

func (r *FakeClientRepo) Upsert(clientData *clients.Client) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if clientData.ID == "" {
		clientData.ID = uuid.New().String()
	}
	r.clients[clientData.ID] = clientData
	return nil
}

func (r *FakeClientRepo) Delete(clientID string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if _, ok := r.clients[clientID]; !ok {
		return clients.ErrNotFound
	}
	delete(r.clients, clientID)
	return nil
}

func (r *FakeClientRepo) Get(clientID string) (*clients.Client, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	client, ok := r.clients[clientID]
	if !ok {
		return nil, clients.ErrNotFound
	}
	return client, nil
}

func (r *FakeClientRepo) List(offset, limit int) ([]*clients.Client, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	clientList := make([]*clients.Client, 0, len(r.clients))
	for _, v := range r.clients {
		clientList = append(clientList, v)
	}

	sort.Slice(clientList, func(i, j int) bool {
		return clientList[i].ID < clientList[j].ID
	})

	if offset < 0 || offset >= len(clientList) {
		return nil, nil
	}
	end := len(clientList)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return clientList[offset:end], nil
}
