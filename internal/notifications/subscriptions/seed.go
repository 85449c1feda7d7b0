package subscriptions

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"movetrack/internal/notifications/models"
)

// Saver is implemented by every subscription store.
type Saver interface {
	Save(ctx context.Context, sub *models.Subscription) error
}

type seedFile struct {
	Subscriptions []models.Subscription `yaml:"subscriptions"`
}

// LoadSeed reads a YAML list of subscriptions and upserts each one.
//
//	subscriptions:
//	  - id: 1b4e...
//	    supplier_id: 9c1f...
//	    callback_url: https://supplier.example/webhooks
//	    secret: s3cret
//	    enabled: true
func LoadSeed(ctx context.Context, path string, store Saver) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read subscription seed: %w", err)
	}
	var f seedFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return 0, fmt.Errorf("parse subscription seed: %w", err)
	}
	for i := range f.Subscriptions {
		sub := &f.Subscriptions[i]
		if sub.ID.IsNil() || sub.SupplierID.IsNil() {
			return i, fmt.Errorf("subscription seed entry %d: id and supplier_id are required", i)
		}
		if sub.CallbackURL == "" && sub.EmailAddress == "" {
			return i, fmt.Errorf("subscription seed entry %d: callback_url or email_address is required", i)
		}
		if err := store.Save(ctx, sub); err != nil {
			return i, err
		}
	}
	return len(f.Subscriptions), nil
}
