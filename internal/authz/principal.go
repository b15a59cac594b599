package authz

// Principal is the resolved identity behind a request, exactly one of
// Anonymous, DoctorPrincipal, or PatientPrincipal. Authorization decisions
// type-switch over it exhaustively; an account with neither profile resolves
// to Anonymous so there is no silent "neither role" fallthrough.
type Principal interface {
	principal()
}

// Anonymous is an unauthenticated or role-less caller.
type Anonymous struct{}

// DoctorPrincipal is an authenticated doctor.
type DoctorPrincipal struct {
	DoctorID string
	UserID   string
}

// PatientPrincipal is an authenticated patient.
type PatientPrincipal struct {
	PatientID string
	UserID    string
}

func (Anonymous) principal()        {}
func (DoctorPrincipal) principal()  {}
func (PatientPrincipal) principal() {}
