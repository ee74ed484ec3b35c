package flow

import "fmt"

// ServiceType identifies one of the supported utility services.
type ServiceType string

const (
	ServiceAirtime     ServiceType = "airtime"
	ServiceInternet    ServiceType = "internet"
	ServiceElectricity ServiceType = "electricity"
	ServiceTV          ServiceType = "tv"
)

type serviceRules struct {
	requiresVariation    bool
	requiresVerification bool
}

var rules = map[ServiceType]serviceRules{
	ServiceAirtime:     {},
	ServiceInternet:    {requiresVariation: true},
	ServiceElectricity: {requiresVariation: true, requiresVerification: true},
	ServiceTV:          {requiresVariation: true, requiresVerification: true},
}

// ValidationError is a local, synchronous rejection. It never touches the
// network and leaves the flow in idle with no idempotency key minted.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}

func validationErrorf(format string, args ...interface{}) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// IsValidationError reports whether err is a local validation rejection.
func IsValidationError(err error) bool {
	_, ok := err.(*ValidationError)
	return ok
}

// PurchaseRequest is the user's intent before any chain interaction.
type PurchaseRequest struct {
	ServiceType   ServiceType
	ServiceID     string
	VariationCode string
	// Beneficiary is the phone, meter or smartcard number the purchase
	// applies to, depending on the service.
	Beneficiary string
	LocalAmount int64
	TokenSymbol string
	// BeneficiaryVerified records that the identity lookup succeeded, for
	// services that gate on it.
	BeneficiaryVerified bool
}

func (r PurchaseRequest) validate() error {
	svc, ok := rules[r.ServiceType]
	if !ok {
		return validationErrorf("unknown service type %q", r.ServiceType)
	}
	if r.ServiceID == "" {
		return validationErrorf("service provider is required")
	}
	if r.Beneficiary == "" {
		return validationErrorf("beneficiary identifier is required")
	}
	if svc.requiresVariation && r.VariationCode == "" {
		return validationErrorf("%s purchases require a plan or variation code", r.ServiceType)
	}
	if svc.requiresVerification && !r.BeneficiaryVerified {
		return validationErrorf("%s beneficiary must be verified before purchase", r.ServiceType)
	}
	if r.TokenSymbol == "" {
		return validationErrorf("paying token is required")
	}
	return nil
}
