package config

type SecurityLevel int

const (
	SecurityPublic   SecurityLevel = iota // No authentication
	SecurityCustomer                      // Any valid access token
	SecurityAdmin                         // Access token with the ADMIN role
)

// EndpointSecurityConfig maps REST route names and gRPC full method names to
// their required security level. Customer routes still check ownership of
// the rental in the handler.
var EndpointSecurityConfig = map[string]SecurityLevel{
	"healthz": SecurityPublic,

	// gRPC health
	"/grpc.health.v1.Health/Check": SecurityPublic,
	"/grpc.health.v1.Health/List":  SecurityPublic,

	// Rentals
	"requestRental": SecurityCustomer,
	"getRental":     SecurityCustomer,
	"listRentals":   SecurityCustomer,
	"confirmRental": SecurityCustomer,
	"cancelRental":  SecurityCustomer,
	"pickupRental":  SecurityAdmin,
	"returnRental":  SecurityAdmin,

	// Damage
	"listDamages":    SecurityCustomer,
	"getDamage":      SecurityCustomer,
	"disputeDamage":  SecurityCustomer,
	"reportDamage":   SecurityAdmin,
	"assessDamage":   SecurityAdmin,
	"resolveDispute": SecurityAdmin,
	"chargeDamage":   SecurityAdmin,
}

// GetSecurityLevel returns the security level for a given route name
func GetSecurityLevel(route string) SecurityLevel {
	if level, exists := EndpointSecurityConfig[route]; exists {
		return level
	}
	// Default to highest security for unknown routes
	return SecurityAdmin
}
