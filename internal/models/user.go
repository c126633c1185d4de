package models

// UserRole represents the roles issued by the admin portal.
type UserRole string

const (
	RoleSuperAdmin  UserRole = "SUPERADMIN"
	RoleAdmin       UserRole = "ADMIN"
	RoleExamOfficer UserRole = "EXAM_OFFICER"
	RoleStaff       UserRole = "STAFF"
)
