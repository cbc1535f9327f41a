package model

import (
	"fmt"
	"strings"
)

// AccountKind distinguishes the two principal populations.  Each kind is
// backed by its own table (`admin`, `client`) and its own repository; the
// kind never selects a table name at runtime.
type AccountKind string

const (
	KindAdmin  AccountKind = "admin"
	KindClient AccountKind = "client"
)

// ParseAccountKind validates a kind read from a token or a request.
func ParseAccountKind(s string) (AccountKind, error) {
	switch AccountKind(strings.ToLower(strings.TrimSpace(s))) {
	case KindAdmin:
		return KindAdmin, nil
	case KindClient:
		return KindClient, nil
	}
	return "", fmt.Errorf("unknown account kind %q", s)
}

// Account is a row of either `admin` or `client`.
//
// Fields:
//  ID           – id_admin or id_client.
//  Kind         – which table the row comes from.
//  Nom, Prenom  – last and first name.
//  Email        – unique per table, stored lower-cased.
//  PasswordHash – bcrypt hash; empty for clients created by an admin
//                 without a password.
type Account struct {
	ID           uint64      `json:"id"`
	Kind         AccountKind `json:"-"`
	Nom          string      `json:"nom"`
	Prenom       string      `json:"prenom"`
	Email        string      `json:"email"`
	PasswordHash string      `json:"-"`
}

// HasPassword reports whether the account can log in.
func (a Account) HasPassword() bool { return a.PasswordHash != "" }

// ClientSummary is a client row as listed to admins.
type ClientSummary struct {
	ID                uint64 `json:"id_client"`
	Nom               string `json:"nom"`
	Prenom            string `json:"prenom"`
	Email             string `json:"email"`
	TotalReservations int    `json:"total_reservations"`
}
