package internaldefs

import (
	"github.com/netnynja/authcore"
)

// CounterDef binds an engine counter to its exported name and help text.
// Instances are configured at package init and treated as immutable.
type CounterDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported engine counter, in exposition order.
var CounterDefs = []CounterDef{
	{ID: authcore.MetricLoginSuccess, Name: "authcore_login_success_total", Help: "Successful login attempts."},
	{ID: authcore.MetricLoginFailure, Name: "authcore_login_failure_total", Help: "Failed login attempts."},
	{ID: authcore.MetricLoginRateLimited, Name: "authcore_login_rate_limited_total", Help: "Rate-limited login attempts."},
	{ID: authcore.MetricLoginLocked, Name: "authcore_login_locked_total", Help: "Logins denied by an active lockout."},
	{ID: authcore.MetricRefreshSuccess, Name: "authcore_refresh_success_total", Help: "Successful token rotations."},
	{ID: authcore.MetricRefreshRejected, Name: "authcore_refresh_rejected_total", Help: "Refresh attempts with a bad or expired token."},
	{ID: authcore.MetricRefreshRevoked, Name: "authcore_refresh_revoked_total", Help: "Refresh attempts with a revoked token."},
	{ID: authcore.MetricLogout, Name: "authcore_logout_total", Help: "Single-session logout operations."},
	{ID: authcore.MetricLogoutAll, Name: "authcore_logout_all_total", Help: "Logout-all operations."},
	{ID: authcore.MetricVerify, Name: "authcore_verify_total", Help: "Token introspection calls."},
	{ID: authcore.MetricStoreFault, Name: "authcore_store_fault_total", Help: "Fail-closed denials caused by store faults."},
}
