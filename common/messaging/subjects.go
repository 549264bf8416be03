package messaging

// Subjects follow the pattern {domain}.{resource}.{action}.
const (
	SubjectAuthRegistered    = "gateway.auth.registered"     // account created via register or federated login
	SubjectAuthLoginFailed   = "gateway.auth.login_failed"   // rejected password login
	SubjectAuthRefreshReused = "gateway.auth.refresh_reused" // revoked refresh token presented again
	SubjectUsersRoleChanged  = "gateway.users.role_changed"  // admin changed an account role
)

// AllSubjects lists every subject the gateway publishes on.
func AllSubjects() []string {
	return []string{
		SubjectAuthRegistered,
		SubjectAuthLoginFailed,
		SubjectAuthRefreshReused,
		SubjectUsersRoleChanged,
	}
}
