package domain

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
	subscriptiondomain "github.com/smallbiznis/telcousage/internal/subscription/domain"
)

// IdentityField names which carrier foreign key owns a usage row.
type IdentityField string

const (
	FieldATTSubscription    IdentityField = "att_subscription"
	FieldSprintSubscription IdentityField = "sprint_subscription"
)

func (f IdentityField) Carrier() (subscriptiondomain.Carrier, error) {
	switch f {
	case FieldATTSubscription:
		return subscriptiondomain.CarrierATT, nil
	case FieldSprintSubscription:
		return subscriptiondomain.CarrierSprint, nil
	default:
		return "", fmt.Errorf("%w: unknown identity field %q", ErrIntegrity, string(f))
	}
}

// Column is the foreign key column backing the field.
func (f IdentityField) Column() string {
	return string(f) + "_id"
}

func FieldFor(carrier subscriptiondomain.Carrier) IdentityField {
	if carrier == subscriptiondomain.CarrierSprint {
		return FieldSprintSubscription
	}
	return FieldATTSubscription
}

// Identity names a subscription regardless of carrier.
type Identity struct {
	Field IdentityField
	Value snowflake.ID
}

func IdentityFor(carrier subscriptiondomain.Carrier, id snowflake.ID) Identity {
	return Identity{Field: FieldFor(carrier), Value: id}
}

// Ref converts the identity back into the dual foreign key form.
func (i Identity) Ref() (SubscriptionRef, error) {
	id := i.Value
	switch i.Field {
	case FieldATTSubscription:
		return SubscriptionRef{ATTSubscriptionID: &id}, nil
	case FieldSprintSubscription:
		return SubscriptionRef{SprintSubscriptionID: &id}, nil
	default:
		return SubscriptionRef{}, fmt.Errorf("%w: unknown identity field %q", ErrIntegrity, string(i.Field))
	}
}

// SubscriptionRef is the mutually exclusive pair of carrier foreign keys
// carried by every usage and aggregate row.
type SubscriptionRef struct {
	ATTSubscriptionID    *snowflake.ID `gorm:"column:att_subscription_id;index;check:chk_subscription_exclusive,(att_subscription_id IS NULL) <> (sprint_subscription_id IS NULL)" json:"att_subscription_id,omitempty"`
	SprintSubscriptionID *snowflake.ID `gorm:"column:sprint_subscription_id;index" json:"sprint_subscription_id,omitempty"`
}

func RefFor(carrier subscriptiondomain.Carrier, id snowflake.ID) SubscriptionRef {
	ref, _ := IdentityFor(carrier, id).Ref()
	return ref
}

// Validate fails with ErrIntegrity unless exactly one foreign key is set.
func (r SubscriptionRef) Validate() error {
	_, err := r.Identity()
	return err
}

// Identity resolves the owning subscription. Rows with both or neither key
// set cannot be attributed and are reported as ErrIntegrity.
func (r SubscriptionRef) Identity() (Identity, error) {
	switch {
	case r.ATTSubscriptionID != nil && r.SprintSubscriptionID != nil:
		return Identity{}, fmt.Errorf("%w: both att and sprint subscriptions set", ErrIntegrity)
	case r.ATTSubscriptionID != nil:
		return Identity{Field: FieldATTSubscription, Value: *r.ATTSubscriptionID}, nil
	case r.SprintSubscriptionID != nil:
		return Identity{Field: FieldSprintSubscription, Value: *r.SprintSubscriptionID}, nil
	default:
		return Identity{}, fmt.Errorf("%w: no subscription set", ErrIntegrity)
	}
}

func qualify(alias, column string) string {
	if alias == "" {
		return column
	}
	return alias + "." + column
}

// IdentityFieldExpr is the SQL form of Identity().Field for rows under alias.
func IdentityFieldExpr(alias string) string {
	return fmt.Sprintf("CASE WHEN %s IS NOT NULL THEN '%s' ELSE '%s' END",
		qualify(alias, FieldATTSubscription.Column()),
		FieldATTSubscription,
		FieldSprintSubscription,
	)
}

// IdentityValueExpr is the SQL form of Identity().Value for rows under alias.
func IdentityValueExpr(alias string) string {
	return fmt.Sprintf("COALESCE(%s, %s)",
		qualify(alias, FieldATTSubscription.Column()),
		qualify(alias, FieldSprintSubscription.Column()),
	)
}
