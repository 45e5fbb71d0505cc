package types

import (
	"fmt"

	"github.com/oklog/ulid/v2"
)

// GenerateUUID returns a k-sortable unique identifier
func GenerateUUID() string {
	return ulid.Make().String()
}

// GenerateUUIDWithPrefix returns a k-sortable unique identifier
// with a prefix ex run_0ujsswThIGTUYm2K8FjOOfXtY1K
func GenerateUUIDWithPrefix(prefix string) string {
	if prefix == "" {
		return GenerateUUID()
	}
	return fmt.Sprintf("%s_%s", prefix, GenerateUUID())
}

const (
	// Prefixes for all domains and entities

	UUID_PREFIX_SUBSCRIPTION    = "subs"
	UUID_PREFIX_BILLING_PERIOD  = "period"
	UUID_PREFIX_BILLING_RUN     = "run"
	UUID_PREFIX_PAYMENT         = "pay"
	UUID_PREFIX_FEE_CALCULATION = "feecalc"
	UUID_PREFIX_DISCOUNT        = "disc"
	UUID_PREFIX_CUSTOMER        = "cust"
	UUID_PREFIX_CHECKOUT        = "checkout"
	UUID_PREFIX_ENVIRONMENT     = "env"
	UUID_PREFIX_TENANT          = "tenant"
	UUID_PREFIX_WEBHOOK_EVENT   = "webhook"
	UUID_PREFIX_TASK            = "task"
)
