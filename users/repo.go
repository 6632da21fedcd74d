package users

type UserRepo interface {
	Insert(user *User) error
	Delete(clientID, username string) error
	Get(clientID, username string) (*User, error)
	GetByEmail(clientID, email string) (*User, error)
	SetVerified(clientID, username string, verified bool) error
	SetPasswordHash(clientID, username, passwordHash string) error
}
