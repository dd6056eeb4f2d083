package models

const (
	RoleStaff    = "staff"
	RoleAdmin    = "admin"
	RoleCustomer = "customer"
)

// Token types carried in the "type" claim.
const (
	PrincipalStaff    = "staff"
	PrincipalCustomer = "customer"
)
