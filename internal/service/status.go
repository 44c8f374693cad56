package service

// Status es el resultado de negocio de un flujo: los rechazos no son errores.
type Status string

const (
	StatusSuccess      Status = "success"
	StatusSent         Status = "sent"
	StatusUpdated      Status = "updated"
	StatusChanged      Status = "changed"
	StatusExists       Status = "exists"
	StatusEmailExists  Status = "email_exists"
	StatusInvalid      Status = "invalid"
	StatusVerifyEmail  Status = "verify_email"
	StatusVerifyPhone  Status = "verify_phone_number"
	StatusActive       Status = "active"
	StatusInactive     Status = "inactive"
	StatusBlocked      Status = "blocked"
	StatusDeleted      Status = "deleted"
	StatusSamePassword Status = "samepassword"
	StatusNotMatched   Status = "notmatched"
	StatusSamePIN      Status = "newAndExistPinSame"
)
