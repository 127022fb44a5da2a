package submission

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

// SerialPattern is the accepted equipment serial format
var SerialPattern = regexp.MustCompile(`^HKX\d{16}$`)

// Field error messages
const (
	MsgNameRequired        = "Name is required."
	MsgEmailRequired       = "Email is required."
	MsgEmailInvalid        = "Invalid email address."
	MsgPhoneRequired       = "Phone number is required."
	MsgDealerRequired      = "Dealer name is required."
	MsgSerialRequired      = "Serial number is required."
	MsgSerialInvalid       = "Serial number must be 19 digits and start with HKX."
	MsgDescriptionRequired = "Issues or claims description is required."
	MsgDateRequired        = "Date is required."
	MsgTimeRequired        = "Time is required."
)

var emailValidator = validator.New()

// ValidateFields checks every field and returns all problems at once. The
// input is trimmed first; the caller's value is not modified. The incident
// time is only checked for presence.
func ValidateFields(in Fields) FieldErrors {
	f := in.Trimmed()
	errs := FieldErrors{}

	if f.ContactName == "" {
		errs[FieldContactName] = MsgNameRequired
	}

	switch {
	case f.ContactEmail == "":
		errs[FieldContactEmail] = MsgEmailRequired
	case emailValidator.Var(f.ContactEmail, "email") != nil:
		errs[FieldContactEmail] = MsgEmailInvalid
	}

	if f.ContactPhone == "" {
		errs[FieldContactPhone] = MsgPhoneRequired
	}

	if f.DealerName == "" {
		errs[FieldDealerName] = MsgDealerRequired
	}

	switch {
	case f.SerialNumber == "":
		errs[FieldSerialNumber] = MsgSerialRequired
	case !SerialPattern.MatchString(f.SerialNumber):
		errs[FieldSerialNumber] = MsgSerialInvalid
	}

	if f.IssuesDescription == "" {
		errs[FieldIssuesDescription] = MsgDescriptionRequired
	}

	if f.IncidentDate == "" {
		errs[FieldIncidentDate] = MsgDateRequired
	}

	if f.IncidentTime == "" {
		errs[FieldIncidentTime] = MsgTimeRequired
	}

	return errs
}
