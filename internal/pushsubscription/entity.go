package pushsubscription

import "time"

// Subscription is a browser Web Push subscription of the approval UI.
type Subscription struct {
	ID        string    `yaml:"id" json:"id"`
	Endpoint  string    `yaml:"endpoint" json:"endpoint"`
	P256dhKey string    `yaml:"p256dh_key" json:"p256dhKey"`
	AuthKey   string    `yaml:"auth_key" json:"authKey"`
	CreatedAt time.Time `yaml:"created_at" json:"createdAt"`
}
