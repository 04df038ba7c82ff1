package chat

import "context"

// Identity - аутентифицированный пользователь в том объёме, который нужен чату.
// Выход выполняет внешний провайдер, сюда он передаётся функцией.
type Identity struct {
	ID    string
	Email string

	signOut func(ctx context.Context) error
}

func NewIdentity(id, email string, signOut func(ctx context.Context) error) Identity {
	return Identity{ID: id, Email: email, signOut: signOut}
}

// Anonymous - ни id, ни email не заданы.
func (i Identity) Anonymous() bool { return i.ID == "" && i.Email == "" }

// DisplayName - email, если есть, иначе id.
func (i Identity) DisplayName() string {
	if i.Email != "" {
		return i.Email
	}
	if i.ID != "" {
		return i.ID
	}
	return "guest"
}

// SignOut вызывает внешний выход. Без функции выхода - no-op.
func (i Identity) SignOut(ctx context.Context) error {
	if i.signOut == nil {
		return nil
	}
	return i.signOut(ctx)
}
