package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Service information
	RouteIndex  = "/{$}"
	RouteHealth = "/healthz"

	// Prefixes (CORS preflight)
	RouteAuthPrefix = "/auth/"
	RouteAPIPrefix  = "/api/"

	// Auth Routes
	RouteAuthRegister = "/auth/register"
	RouteAuthLogin    = "/auth/login"

	// API Routes (bearer token required)
	RouteAPIUser                  = "/api/users/{id}"
	RouteAPIOrganisations         = "/api/organisations"
	RouteAPIOrganisation          = "/api/organisations/{orgId}"
	RouteAPIOrganisationAddMember = "/api/organisations/{orgId}/users"
)
