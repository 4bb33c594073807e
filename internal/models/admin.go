package models

// AdminAccount is an operator allowed into the dashboard.
type AdminAccount struct {
	Email        string `yaml:"email" json:"email"`
	Name         string `yaml:"name" json:"name"`
	PasswordHash string `yaml:"password_hash" json:"-"`
}
